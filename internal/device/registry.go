package device

import (
	"fmt"
	"sort"
	"sync"
)

// Well-known device names used by the HTTP routes and the dashboard.
const (
	NameBroombot = "broombot"
	NameMopbot   = "mopbot"
	NameCar      = "car"
)

// Registry maps device names to their clients. It is filled at startup and
// read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	robots  map[string]Robot
	vehicle Vehicle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{robots: make(map[string]Robot)}
}

// AddRobot registers a robot under its Name.
func (r *Registry) AddRobot(robot Robot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.robots[robot.Name()] = robot
}

// SetVehicle registers the vehicle.
func (r *Registry) SetVehicle(v Vehicle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicle = v
}

// Robot returns the robot registered under name.
func (r *Registry) Robot(name string) (Robot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	robot, ok := r.robots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
	return robot, nil
}

// Vehicle returns the registered vehicle.
func (r *Registry) Vehicle() (Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.vehicle == nil {
		return nil, fmt.Errorf("%w: no vehicle registered", ErrUnknownDevice)
	}
	return r.vehicle, nil
}

// RobotNames lists registered robots, sorted.
func (r *Registry) RobotNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.robots))
	for name := range r.robots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

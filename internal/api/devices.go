package api

import (
	"errors"
	"net/http"

	"github.com/fluxhaus/fluxhaus-core/internal/command"
	"github.com/fluxhaus/fluxhaus-core/internal/device"
)

// commandResponse acknowledges a device command. Delivery failures are
// reported through Accepted and Error with status 200; the effect is only
// confirmed by a later resync.
type commandResponse struct {
	Result    string                `json:"result"`
	Message   string                `json:"message"`
	Accepted  bool                  `json:"accepted"`
	Error     string                `json:"error,omitempty"`
	Ack       *device.Ack           `json:"ack,omitempty"`
	DeepClean *command.DeepCleanAck `json:"deepClean,omitempty"`
	Execution *command.Execution    `json:"execution,omitempty"`
}

// robotMessages are the human-readable acknowledgements per robot command.
var robotMessages = map[device.Command]string{
	device.CommandOn:  "is turned on.",
	device.CommandOff: "is turned off.",
}

var vehicleMessages = map[device.Command]string{
	device.CommandStart:  "Car start requested.",
	device.CommandStop:   "Car stop requested.",
	device.CommandLock:   "Car lock requested.",
	device.CommandUnlock: "Car unlock requested.",
}

func (s *Server) handleRobot(name string, cmd device.Command) http.HandlerFunc {
	message := displayName(name) + " " + robotMessages[cmd]
	return func(w http.ResponseWriter, r *http.Request) {
		ack, err := s.dispatcher.Robot(r.Context(), name, cmd)
		if s.writeDispatchError(w, err) {
			return
		}
		s.writeCommand(w, commandResponse{Message: message, Ack: &ack, Accepted: ack.Accepted}, err)
	}
}

func (s *Server) handleVehicle(cmd device.Command) http.HandlerFunc {
	message := vehicleMessages[cmd]
	return func(w http.ResponseWriter, r *http.Request) {
		ack, err := s.dispatcher.Vehicle(r.Context(), cmd)
		if s.writeDispatchError(w, err) {
			return
		}
		s.writeCommand(w, commandResponse{Message: message, Ack: &ack, Accepted: ack.Accepted}, err)
	}
}

func (s *Server) handleResyncVehicle(w http.ResponseWriter, r *http.Request) {
	exec, err := s.dispatcher.ResyncVehicle(r.Context())
	if s.writeDispatchError(w, err) {
		return
	}
	s.writeCommand(w, commandResponse{Message: "Resyncing car", Execution: &exec, Accepted: exec.Accepted}, err)
}

func (s *Server) handleStartDeepClean(w http.ResponseWriter, r *http.Request) {
	res, err := s.dispatcher.StartDeepClean(r.Context())
	if s.writeDispatchError(w, err) {
		return
	}
	s.writeCommand(w, commandResponse{
		Message:   "Broombot is turned on.",
		DeepClean: &res,
		Accepted:  res.Broombot.Accepted,
	}, err)
}

func (s *Server) handleStopDeepClean(w http.ResponseWriter, r *http.Request) {
	res, err := s.dispatcher.StopDeepClean(r.Context())
	if s.writeDispatchError(w, err) {
		return
	}
	accepted := res.Broombot.Accepted
	if res.Mopbot != nil {
		accepted = accepted && res.Mopbot.Accepted
	}
	s.writeCommand(w, commandResponse{
		Message:   "Broombot is turned off.",
		DeepClean: &res,
		Accepted:  accepted,
	}, err)
}

// writeDispatchError answers errors that mean the command was never
// attempted. It reports whether it wrote a response.
func (s *Server) writeDispatchError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, command.ErrUnknownDevice):
		writeNotFound(w, err.Error())
	case errors.Is(err, command.ErrUnknownAction):
		writeBadRequest(w, err.Error())
	case errors.Is(err, command.ErrClosed):
		writeUnavailable(w, "shutting down")
	default:
		return false
	}
	return true
}

func (s *Server) writeCommand(w http.ResponseWriter, resp commandResponse, err error) {
	resp.Result = "Ok"
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func displayName(name string) string {
	switch name {
	case device.NameBroombot:
		return "Broombot"
	case device.NameMopbot:
		return "Mopbot"
	default:
		return name
	}
}

// Package rhizome talks to the upstream services behind the "rhizome" part
// of the dashboard: the dog-daycare scheduling API and the photo/news feed
// kept in a GitHub repository.
//
// FetchSchedule and FetchPhotos produce the payloads the poller caches.
// SubmitBooking renders the configured booking template for a drop-off and
// pick-up window and posts it. The booking response is logged and never
// validated: the daycare API gives no reliable confirmation, so callers
// are told the booking was accepted as soon as it is handed off.
package rhizome

// Package auth decides who is calling and what they may do.
//
// There are three roles. admin sees the full dashboard and may do
// everything; partner sees the camera and daycare data and may operate
// devices and book the daycare; anonymous may do nothing and is rejected
// before any handler runs. Capabilities are checked through Authorize
// against a static role-permission table.
//
// Credentials come from configuration. A caller authenticates with HTTP
// Basic (plaintext or Argon2id PHC hash in config) or with a short-lived
// HS256 JWT issued by GenerateAccessToken.
package auth

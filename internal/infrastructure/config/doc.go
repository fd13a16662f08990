// Package config handles loading and validating FluxHaus Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields and credentials
//   - Default value handling
//
// Security Considerations:
//   - Passwords, the JWT secret and the Rhizome token should be set via
//     environment variables rather than committed to the config file
//   - Static user passwords may be stored as Argon2id PHC hashes
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config

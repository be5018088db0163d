package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dmitrijs2005/artivault/internal/flagx"
	"github.com/dmitrijs2005/artivault/internal/timex"
)

// FileConfig is the on-disk shape of the configuration. Pointer fields
// distinguish "absent" from "zero" so that a partial file only overrides
// what it names.
type FileConfig struct {
	EndpointAddrGRPC      *string         `json:"endpoint_addr_grpc" toml:"endpoint_addr_grpc"`
	DatabaseDriver        *string         `json:"database_driver" toml:"database_driver"`
	DatabaseDSN           *string         `json:"database_dsn" toml:"database_dsn"`
	SecretKey             *string         `json:"secret_key" toml:"secret_key"`
	TokenValidityDuration *timex.Duration `json:"token_validity_duration" toml:"token_validity_duration"`
	S3RootUser            *string         `json:"s3_root_user" toml:"s3_root_user"`
	S3RootPassword        *string         `json:"s3_root_password" toml:"s3_root_password"`
	S3Bucket              *string         `json:"s3_bucket" toml:"s3_bucket"`
	S3Region              *string         `json:"s3_region" toml:"s3_region"`
	S3BaseEndpoint        *string         `json:"s3_base_endpoint" toml:"s3_base_endpoint"`
	MaintenanceMode       *bool           `json:"maintenance_mode" toml:"maintenance_mode"`
	AdminLogin            *string         `json:"admin_login" toml:"admin_login"`
	LogBackend            *string         `json:"log_backend" toml:"log_backend"`
}

// parseFile loads configuration values from the file named by -c, -config
// or $ARTIVAULT_CONFIG. Without either no file is loaded. An unreadable or
// malformed file panics.
func parseFile(config *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}
	if err := LoadFile(path, config); err != nil {
		panic(err)
	}
}

// LoadFile overlays config with the values named in the file at path.
// Files ending in .toml are decoded as TOML, everything else as JSON.
func LoadFile(path string, config *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &FileConfig{}
	if strings.HasSuffix(strings.ToLower(path), ".toml") {
		err = toml.Unmarshal(raw, c)
	} else {
		err = json.Unmarshal(raw, c)
	}
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *FileConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.TokenValidityDuration != nil {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.MaintenanceMode != nil {
		config.MaintenanceMode = *c.MaintenanceMode
	}
	setString(&config.AdminLogin, c.AdminLogin)
	setString(&config.LogBackend, c.LogBackend)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

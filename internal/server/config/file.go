package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/timex"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileConfig is the on-disk shape of the configuration, shared by the JSON
// and YAML loaders. Durations accept "15m"-style strings. Zero values leave the
// current setting untouched.
type FileConfig struct {
	EndpointAddrGRPC                 string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP                 string         `json:"endpoint_addr_http"`
	StorageBackend                   string         `json:"storage_backend"`
	DatabaseDSN                      string         `json:"database_dsn"`
	SecretKey                        string         `json:"secret_key"`
	AccessTokenValidityDuration      timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration     timex.Duration `json:"refresh_token_validity_duration"`
	RegistrationCodeValidityDuration timex.Duration `json:"registration_code_validity_duration"`
	ResendCodeValidityDuration       timex.Duration `json:"resend_code_validity_duration"`
	PasswordHasher                   string         `json:"password_hasher"`
	BcryptCost                       int            `json:"bcrypt_cost"`
	MailBackend                      string         `json:"mail_backend"`
	MailFrom                         string         `json:"mail_from"`
	SESRegion                        string         `json:"ses_region"`
	SESEndpoint                      string         `json:"ses_endpoint"`
	SESAccessKeyID                   string         `json:"ses_access_key_id"`
	SESSecretAccessKey               string         `json:"ses_secret_access_key"`
	ClientURL                        string         `json:"client_url"`
	LogLevel                         string         `json:"log_level"`
}

// parseFile overlays cfg with the file at path; the format is chosen by
// extension (.json, .yaml, .yml).
func parseFile(cfg *Config, path string) error {
	var (
		fc  *FileConfig
		err error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		fc, err = readJSON(path)
	case ".yaml", ".yml":
		fc, err = readYAML(path)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return err
	}

	fc.apply(cfg)
	return nil
}

func readJSON(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc := &FileConfig{}
	if err := json.Unmarshal(data, fc); err != nil {
		return nil, err
	}
	return fc, nil
}

func readYAML(path string) (*FileConfig, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, err
	}

	duration := func(key string) (timex.Duration, error) {
		if !k.Exists(key) {
			return timex.Duration{}, nil
		}
		d, err := time.ParseDuration(k.String(key))
		if err != nil {
			return timex.Duration{}, fmt.Errorf("%s: %w", key, err)
		}
		return timex.Duration{Duration: d}, nil
	}

	fc := &FileConfig{
		EndpointAddrGRPC:   k.String("endpoint_addr_grpc"),
		EndpointAddrHTTP:   k.String("endpoint_addr_http"),
		StorageBackend:     k.String("storage_backend"),
		DatabaseDSN:        k.String("database_dsn"),
		SecretKey:          k.String("secret_key"),
		PasswordHasher:     k.String("password_hasher"),
		BcryptCost:         k.Int("bcrypt_cost"),
		MailBackend:        k.String("mail_backend"),
		MailFrom:           k.String("mail_from"),
		SESRegion:          k.String("ses_region"),
		SESEndpoint:        k.String("ses_endpoint"),
		SESAccessKeyID:     k.String("ses_access_key_id"),
		SESSecretAccessKey: k.String("ses_secret_access_key"),
		ClientURL:          k.String("client_url"),
		LogLevel:           k.String("log_level"),
	}

	var err error
	if fc.AccessTokenValidityDuration, err = duration("access_token_validity_duration"); err != nil {
		return nil, err
	}
	if fc.RefreshTokenValidityDuration, err = duration("refresh_token_validity_duration"); err != nil {
		return nil, err
	}
	if fc.RegistrationCodeValidityDuration, err = duration("registration_code_validity_duration"); err != nil {
		return nil, err
	}
	if fc.ResendCodeValidityDuration, err = duration("resend_code_validity_duration"); err != nil {
		return nil, err
	}
	return fc, nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, v timex.Duration) {
		if v.Duration != 0 {
			*dst = v.Duration
		}
	}

	setString(&cfg.EndpointAddrGRPC, fc.EndpointAddrGRPC)
	setString(&cfg.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	setString(&cfg.StorageBackend, fc.StorageBackend)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.SecretKey, fc.SecretKey)
	setDuration(&cfg.AccessTokenValidityDuration, fc.AccessTokenValidityDuration)
	setDuration(&cfg.RefreshTokenValidityDuration, fc.RefreshTokenValidityDuration)
	setDuration(&cfg.RegistrationCodeValidityDuration, fc.RegistrationCodeValidityDuration)
	setDuration(&cfg.ResendCodeValidityDuration, fc.ResendCodeValidityDuration)
	setString(&cfg.PasswordHasher, fc.PasswordHasher)
	if fc.BcryptCost != 0 {
		cfg.BcryptCost = fc.BcryptCost
	}
	setString(&cfg.MailBackend, fc.MailBackend)
	setString(&cfg.MailFrom, fc.MailFrom)
	setString(&cfg.SESRegion, fc.SESRegion)
	setString(&cfg.SESEndpoint, fc.SESEndpoint)
	setString(&cfg.SESAccessKeyID, fc.SESAccessKeyID)
	setString(&cfg.SESSecretAccessKey, fc.SESSecretAccessKey)
	setString(&cfg.ClientURL, fc.ClientURL)
	setString(&cfg.LogLevel, fc.LogLevel)
}

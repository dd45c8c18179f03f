package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		ReadTimeout        time.Duration
		WriteTimeout       time.Duration
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
		MaxOpenConns  int
	}

	TwilioConfig struct {
		AccountSID   string
		AuthToken    string
		WhatsAppFrom string
	}

	NotifyConfig struct {
		Timeout time.Duration
	}

	JobsConfig struct {
		PendingDigestSpec string
	}

	UploadConfig struct {
		Dir          string
		MaxSize      int64
		MaxDimension int
	}

	Config struct {
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		DefaultCountryCode        string
		PasswordResetTimeoutDelta time.Duration
		SendgridApiKey            string
		RollbarToken              string

		Server   ServerConfig
		Database DatabaseConfig
		Twilio   TwilioConfig
		Notify   NotifyConfig
		Jobs     JobsConfig
		Upload   UploadConfig

		defaultFromEmail string
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

func (c *Config) IsProd() bool { return c.Env == "PROD" || c.Env == "QA" }

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig reads the configuration from the environment of the current ENV (DEV by default).
// Variables are prefixed by the ENV, e.g. PROD_SECRETKEY.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "KEEM Driving School")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k33m-7s!d2w@q#x9l(0v)z8&pc4$n+u5=jr%e1yb3h6tg_a")
	v.SetDefault("frontendBaseURL", "")
	v.SetDefault("defaultFromEmail", "KEEM Driving School <noreply@localhost>")
	v.SetDefault("defaultCountryCode", "260")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverReadTimeout", 10*time.Second)
	v.SetDefault("serverWriteTimeout", 30*time.Second)
	v.SetDefault("serverShutdownTimeout", 15*time.Second)
	v.SetDefault("jwtExpirationDelta", 12*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbUser", "keem")
	v.SetDefault("dbPassword", "keem")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbName", "keem")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("dbMaxOpenConns", 10)

	v.SetDefault("twilioAccountSID", "")
	v.SetDefault("twilioAuthToken", "")
	v.SetDefault("twilioWhatsAppFrom", "")

	v.SetDefault("notifyTimeout", 10*time.Second)
	v.SetDefault("pendingDigestSpec", "0 7 * * *")

	v.SetDefault("uploadDir", filepath.Join(os.TempDir(), "keem-uploads"))
	v.SetDefault("uploadMaxSize", int64(5<<20))
	v.SetDefault("uploadMaxDimension", 800)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultCountryCode:        v.GetString("defaultCountryCode"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:               v.GetString("serverHost"),
			Address:            v.GetString("serverAddress"),
			DebugHost:          v.GetString("serverDebugHost"),
			ReadTimeout:        v.GetDuration("serverReadTimeout"),
			WriteTimeout:       v.GetDuration("serverWriteTimeout"),
			ShutdownTimeout:    v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			Name:          v.GetString("dbName"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
			MaxOpenConns:  v.GetInt("dbMaxOpenConns"),
		},
		Twilio: TwilioConfig{
			AccountSID:   v.GetString("twilioAccountSID"),
			AuthToken:    v.GetString("twilioAuthToken"),
			WhatsAppFrom: v.GetString("twilioWhatsAppFrom"),
		},
		Notify: NotifyConfig{Timeout: v.GetDuration("notifyTimeout")},
		Jobs:   JobsConfig{PendingDigestSpec: v.GetString("pendingDigestSpec")},
		Upload: UploadConfig{
			Dir:          v.GetString("uploadDir"),
			MaxSize:      v.GetInt64("uploadMaxSize"),
			MaxDimension: v.GetInt("uploadMaxDimension"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns a Config suitable for tests, without reading the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		AppName:                   "KEEM Driving School",
		SecretKey:                 "test-secret-key",
		DefaultCountryCode:        "260",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: ServerConfig{
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: time.Hour,
		},
		Notify: NotifyConfig{Timeout: time.Second},
		Jobs:   JobsConfig{PendingDigestSpec: "0 7 * * *"},
		Upload: UploadConfig{
			Dir:          filepath.Join(os.TempDir(), "keem-test-uploads"),
			MaxSize:      5 << 20,
			MaxDimension: 800,
		},
		defaultFromEmail: "KEEM Driving School <noreply@test.zm>",
	}
}

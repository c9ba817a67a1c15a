package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rvangils/accountd/internal/email"
	"github.com/rvangils/accountd/internal/errorz"
	"github.com/rvangils/accountd/internal/krypto"
)

var errRequired = errors.New("required")

// httpConfig is the configuration for the HTTP server.
type httpConfig struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
}

// emailConfig selects and configures the outgoing email sender.
type emailConfig struct {
	// sender is one of: log, memory, postmark, mailgun.
	sender string
	from   email.Address

	postmarkAPIURL        string
	postmarkServerToken   krypto.Secret
	postmarkMessageStream string

	mailgunAPIHost  string
	mailgunDomain   string
	mailgunUsername string
	mailgunPassword krypto.Secret
}

// config is the configuration for the server command.
type config struct {
	http  httpConfig
	email emailConfig

	dbFile  string
	baseURL string

	encryptionKeys []krypto.Key
	blindIndexKey  krypto.Key

	verifyTokenExpiry time.Duration
	resetTokenExpiry  time.Duration
}

// defaultConfig returns a config with sane default values. The secrets
// have no defaults, they always come from the environment.
func defaultConfig() config {
	return config{
		http: httpConfig{
			addr:            ":8888",
			readTimeout:     time.Second * 5,
			writeTimeout:    time.Second * 10,
			idleTimeout:     time.Second * 120,
			shutdownTimeout: time.Second * 15,
		},
		email: emailConfig{
			sender:                "log",
			postmarkAPIURL:        "https://api.postmarkapp.com/email",
			postmarkMessageStream: "outbound",
			mailgunAPIHost:        "api.eu.mailgun.net",
		},
		dbFile:            "accountd.db",
		baseURL:           "http://localhost:8888",
		verifyTokenExpiry: time.Hour * 6,
		resetTokenExpiry:  time.Hour,
	}
}

// envMap maps environment variable names to fields in the config struct.
var envMap = map[string]func(v string, c *config) error{
	"HTTP_ADDR": func(v string, c *config) error {
		c.http.addr = v
		return nil
	},
	"HTTP_READ_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.readTimeout, 0, math.MaxInt64)
	},
	"HTTP_WRITE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.writeTimeout, 0, math.MaxInt64)
	},
	"HTTP_IDLE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.idleTimeout, 0, math.MaxInt64)
	},
	"HTTP_SHUTDOWN_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.shutdownTimeout, 0, math.MaxInt64)
	},
	"DB_FILE": func(v string, c *config) error {
		c.dbFile = v
		return nil
	},
	"BASE_URL": func(v string, c *config) error {
		c.baseURL = strings.TrimSuffix(v, "/")
		return nil
	},
	"VERIFY_TOKEN_EXPIRY": func(v string, c *config) error {
		return confDuration(v, &c.verifyTokenExpiry, time.Minute, math.MaxInt64)
	},
	"RESET_TOKEN_EXPIRY": func(v string, c *config) error {
		return confDuration(v, &c.resetTokenExpiry, time.Minute, math.MaxInt64)
	},
	"ENCRYPTION_KEYS": func(v string, c *config) error {
		// Comma separated, append only. The last key is used to encrypt.
		for _, raw := range strings.Split(v, ",") {
			key, err := krypto.ParseKey(raw)
			if err != nil {
				return err
			}
			c.encryptionKeys = append(c.encryptionKeys, key)
		}
		return nil
	},
	"BLIND_INDEX_KEY": func(v string, c *config) error {
		key, err := krypto.ParseKey(v)
		if err != nil {
			return err
		}
		c.blindIndexKey = key
		return nil
	},
	"EMAIL_SENDER": func(v string, c *config) error {
		switch v {
		case "log", "memory", "postmark", "mailgun":
			c.email.sender = v
			return nil
		default:
			return fmt.Errorf("unknown email sender %q", v)
		}
	},
	"FROM_EMAIL": func(v string, c *config) error {
		addr, err := email.ParseAddress(v)
		if err != nil {
			return err
		}
		c.email.from = addr
		return nil
	},
	"POSTMARK_API_URL": func(v string, c *config) error {
		c.email.postmarkAPIURL = v
		return nil
	},
	"POSTMARK_SERVER_TOKEN": func(v string, c *config) error {
		c.email.postmarkServerToken = krypto.NewSecret(v)
		return nil
	},
	"POSTMARK_MESSAGE_STREAM": func(v string, c *config) error {
		c.email.postmarkMessageStream = v
		return nil
	},
	"MAILGUN_API_HOST": func(v string, c *config) error {
		c.email.mailgunAPIHost = v
		return nil
	},
	"MAILGUN_DOMAIN": func(v string, c *config) error {
		c.email.mailgunDomain = v
		return nil
	},
	"MAILGUN_USERNAME": func(v string, c *config) error {
		c.email.mailgunUsername = v
		return nil
	},
	"MAILGUN_PASSWORD": func(v string, c *config) error {
		c.email.mailgunPassword = krypto.NewSecret(v)
		return nil
	},
}

// configFromEnv returns a config with values from the environment. It falls
// back to default values for any missing environment variables.
//
// It does a best effort to validate provided values, so that mistakes are
// caught ASAP. However, there is no guarantee that the returned config
// is valid and will work.
func configFromEnv() (config, error) {
	c := defaultConfig()

	for key, mf := range envMap {
		if val, ok := os.LookupEnv(key); ok {
			if err := mf(val, &c); err != nil {
				return c, fmt.Errorf("invalid env variable %s: %w", key, err)
			}
		}
	}

	var invalid errorz.InvalidInput

	if len(c.encryptionKeys) == 0 {
		invalid = append(invalid, errorz.Keyed{Key: "ENCRYPTION_KEYS", Err: errRequired})
	}

	if len(c.blindIndexKey.SecretValue()) == 0 {
		invalid = append(invalid, errorz.Keyed{Key: "BLIND_INDEX_KEY", Err: errRequired})
	}

	if c.email.from == "" {
		invalid = append(invalid, errorz.Keyed{Key: "FROM_EMAIL", Err: errRequired})
	}

	if len(invalid) > 0 {
		return c, invalid
	}

	return c, nil
}

// confDuration attempts to parse v into tgt and checks if the result is in
// the provided range (inclusive).
func confDuration(v string, tgt *time.Duration, min, max time.Duration) error {
	dur, err := time.ParseDuration(v)
	if err != nil {
		return err
	}

	if dur < min || dur > max {
		return fmt.Errorf("duration %s not in range [%s, %s] (inclusive)", dur, min, max)
	}

	*tgt = dur

	return nil
}

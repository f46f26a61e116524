package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

// only ${NAME} is expanded, a bare $1 is an insert placeholder
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

type validator interface {
	Validate() error
}

// Load : reads the job file at path, expands ${VAR} references from the
// process environment (falling back to a .env file next to the job file),
// applies defaults and validates everything, reporting all problems at once
func Load[S any, T any](fs afero.Fs, path string) (Config[S, T], error) {
	var cfg Config[S, T]

	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, fmt.Errorf("could not read job file %s : %w", path, err)
	}
	dotEnv, err := readDotEnv(fs, filepath.Join(filepath.Dir(path), ".env"))
	if err != nil {
		return cfg, err
	}
	expanded, err := expand(b, dotEnv)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(expanded, &cfg); err != nil {
		return cfg, fmt.Errorf("could not decode job file %s : %w", path, err)
	}
	cfg.Job = cfg.Job.WithDefaults()

	var finalErr error
	if err := cfg.Job.Validate(); err != nil {
		finalErr = multierror.Append(finalErr, err)
	}
	if v, ok := any(&cfg.SourceConfig).(validator); ok {
		if err := v.Validate(); err != nil {
			finalErr = multierror.Append(finalErr, err)
		}
	}
	if v, ok := any(&cfg.Target).(validator); ok {
		if err := v.Validate(); err != nil {
			finalErr = multierror.Append(finalErr, err)
		}
	}
	return cfg, finalErr
}

func readDotEnv(fs afero.Fs, path string) (map[string]string, error) {
	f, err := fs.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vals, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("could not parse %s : %w", path, err)
	}
	return vals, nil
}

func expand(b []byte, dotEnv map[string]string) ([]byte, error) {
	var missing error
	out := envRef.ReplaceAllFunc(b, func(ref []byte) []byte {
		name := string(envRef.FindSubmatch(ref)[1])
		if v, ok := os.LookupEnv(name); ok {
			return jsonEscape(v)
		}
		if v, ok := dotEnv[name]; ok {
			return jsonEscape(v)
		}
		missing = multierror.Append(missing, fmt.Errorf("environment variable %s is not set", name))
		return nil
	})
	return out, missing
}

// values land inside json strings
func jsonEscape(v string) []byte {
	b, _ := json.Marshal(v)
	return b[1 : len(b)-1]
}

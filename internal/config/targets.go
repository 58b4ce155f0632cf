package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Target is one named backend database. Resolved once at startup and owned
// by the execution manager; callers only ever see the name.
type Target struct {
	Name      string `yaml:"-"`
	URL       string `yaml:"url,omitempty"` // full DSN; wins over the discrete fields
	Host      string `yaml:"host,omitempty"`
	Port      int    `yaml:"port,omitempty"`
	User      string `yaml:"user,omitempty"`
	Password  string `yaml:"password,omitempty"`
	Database  string `yaml:"database,omitempty"`
	TLSMode   string `yaml:"tls,omitempty"`        // "disable" (default) or "require"
	TLSVerify bool   `yaml:"tls_verify,omitempty"` // verify the server certificate when TLS is on
}

// DSN renders the target as a postgres connection URL. The discrete TLS
// fields map onto sslmode: disable, require, or verify-full.
func (t Target) DSN() string {
	if t.URL != "" {
		return t.URL
	}

	port := t.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(t.Host, strconv.Itoa(port)),
		Path:   "/" + t.Database,
	}
	if t.User != "" {
		if t.Password != "" {
			u.User = url.UserPassword(t.User, t.Password)
		} else {
			u.User = url.User(t.User)
		}
	}

	q := url.Values{}
	q.Set("sslmode", t.sslMode())
	u.RawQuery = q.Encode()

	return u.String()
}

func (t Target) sslMode() string {
	switch {
	case t.TLSMode == "" || t.TLSMode == "disable":
		return "disable"
	case t.TLSVerify:
		return "verify-full"
	default:
		return "require"
	}
}

type targetsFile struct {
	Targets map[string]Target `yaml:"targets"`
}

// LoadTargetsFile reads a YAML file mapping target names to connection
// parameters. Names come from the map keys; the result is sorted by name so
// startup is deterministic.
func LoadTargetsFile(path string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading targets file: %w", err)
	}

	var tf targetsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing targets YAML: %w", err)
	}
	if len(tf.Targets) == 0 {
		return nil, fmt.Errorf("targets file %q defines no targets", path)
	}

	targets := make([]Target, 0, len(tf.Targets))
	for name, t := range tf.Targets {
		if name == "" {
			return nil, fmt.Errorf("targets file %q contains an empty target name", path)
		}
		if t.URL == "" && (t.Host == "" || t.Database == "") {
			return nil, fmt.Errorf("target %q needs either url or host+database", name)
		}
		t.Name = name
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Name < targets[j].Name })

	return targets, nil
}

// resolveTargets combines the two configuration sources: an explicit YAML
// targets file and the DATABASE_URL shorthand, which defines a single
// target named "primary".
func resolveTargets(targetsFile, databaseURL string) ([]Target, error) {
	if targetsFile != "" {
		return LoadTargetsFile(targetsFile)
	}
	if databaseURL != "" {
		return []Target{{Name: "primary", URL: databaseURL}}, nil
	}
	return nil, nil
}

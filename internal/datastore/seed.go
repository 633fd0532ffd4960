package datastore

import (
	"bytes"
	"context"
	_ "embed"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/homelab/fleetdash/internal/domain"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed is the initial fleet loaded into an empty database
type Seed struct {
	Servers []SeedServer `yaml:"servers"`
}

// SeedServer is a server with the accounts it starts with
type SeedServer struct {
	domain.Server `yaml:",inline"`
	Users         []SeedUser `yaml:"users"`
}

// SeedUser is an existing account on a seeded server
type SeedUser struct {
	Username string `yaml:"username"`
	Shell    string `yaml:"shell"`
	Status   string `yaml:"status"`
}

// DefaultSeed returns the embedded demo fleet
func DefaultSeed() (*Seed, error) {
	return ParseSeed(bytes.NewReader(defaultSeed))
}

// LoadSeedFile reads a seed from a YAML file
func LoadSeedFile(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer func() {
		_ = f.Close()
	}()
	return ParseSeed(f)
}

// ParseSeed decodes a YAML seed
func ParseSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, errors.Wrap(err, "decode seed")
	}
	return &seed, nil
}

// ApplySeed loads the seed when the database holds no servers yet. It
// reports whether anything was written.
func (ds *Datastore) ApplySeed(ctx context.Context, seed *Seed) (bool, error) {
	n, err := ds.CountServers(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	for _, s := range seed.Servers {
		saved, err := ds.SaveServer(ctx, s.Server)
		if err != nil {
			return false, errors.Wrapf(err, "seed server %s", s.ID)
		}
		for _, u := range s.Users {
			status := domain.UserActive
			if u.Status == string(domain.UserLocked) {
				status = domain.UserLocked
			}
			shell := u.Shell
			if shell == "" {
				shell = DefaultShell
			}
			_, err := ds.CreateUser(ctx, User{
				ServerID: saved.ID,
				Username: u.Username,
				Home:     HomeDir(u.Username),
				Shell:    shell,
				Status:   string(status),
				Role:     string(domain.RoleDeveloper),
			})
			if err != nil {
				return false, errors.Wrapf(err, "seed user %s on %s", u.Username, saved.ID)
			}
		}
	}
	return true, nil
}

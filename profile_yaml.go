package lattice

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/lattice/policy"
	"github.com/arloliu/lattice/types"
)

// profilesFile is the on-disk schema for declarative execution profiles.
//
// Example:
//
//	profiles:
//	  analytics:
//	    consistency: LOCAL_QUORUM
//	    serial_consistency: LOCAL_SERIAL
//	    request_timeout: 30s
//	    retry_policy: downgrading
type profilesFile struct {
	Profiles map[string]profileSpec `yaml:"profiles"`
}

type profileSpec struct {
	Consistency       string  `yaml:"consistency"`
	SerialConsistency *string `yaml:"serial_consistency"`
	RequestTimeout    string  `yaml:"request_timeout"`
	RetryPolicy       string  `yaml:"retry_policy"`
}

// ParseProfiles parses YAML profile definitions into execution profiles.
// Fields absent from the YAML keep their defaults; load balancing and row
// factories are code-level concerns and are not expressible in YAML.
//
// Parameters:
//   - data: The YAML document
//
// Returns:
//   - map[string]ExecutionProfile: Parsed profiles keyed by name
//   - error: A parse or validation error
func ParseProfiles(data []byte) (map[string]ExecutionProfile, error) {
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	profiles := make(map[string]ExecutionProfile, len(file.Profiles))
	for name, spec := range file.Profiles {
		var opts []ProfileOption

		if spec.Consistency != "" {
			cl, err := types.ParseConsistency(spec.Consistency)
			if err != nil {
				return nil, fmt.Errorf("profile %q: %w", name, err)
			}
			opts = append(opts, WithProfileConsistency(cl))
		}

		if spec.SerialConsistency != nil {
			cl, err := types.ParseConsistency(*spec.SerialConsistency)
			if err != nil {
				return nil, fmt.Errorf("profile %q: %w", name, err)
			}
			opts = append(opts, WithProfileSerialConsistency(cl))
		}

		if spec.RequestTimeout != "" {
			d, err := time.ParseDuration(spec.RequestTimeout)
			if err != nil {
				return nil, fmt.Errorf("profile %q: invalid request_timeout: %w", name, err)
			}
			opts = append(opts, WithProfileRequestTimeout(d))
		}

		if spec.RetryPolicy != "" {
			rp, err := parseRetryPolicy(spec.RetryPolicy)
			if err != nil {
				return nil, fmt.Errorf("profile %q: %w", name, err)
			}
			opts = append(opts, WithProfileRetryPolicy(rp))
		}

		profiles[name] = NewExecutionProfile(opts...)
	}

	return profiles, nil
}

// LoadProfiles reads and parses a YAML profile file.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - map[string]ExecutionProfile: Parsed profiles keyed by name
//   - error: A read, parse, or validation error
func LoadProfiles(path string) (map[string]ExecutionProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	return ParseProfiles(data)
}

func parseRetryPolicy(name string) (policy.RetryPolicy, error) {
	switch name {
	case "default":
		return policy.NewDefault(), nil
	case "fallthrough":
		return policy.NewFallthrough(), nil
	case "downgrading":
		return policy.NewDowngradingConsistency(), nil
	default:
		return nil, fmt.Errorf("unknown retry policy: %q", name)
	}
}

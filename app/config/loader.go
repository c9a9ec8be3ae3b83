package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the refresh policy from a YAML file. A missing file is not an
// error: the built-in defaults are returned so the service can start with
// no policy file present.
func Load(path string) (*Policy, error) {
	policy := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return policy, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy YAML: %w", err)
	}

	setDefaults(policy)

	if err := validate(policy); err != nil {
		return nil, fmt.Errorf("invalid policy %s: %w", path, err)
	}

	return policy, nil
}

// Default returns the policy used when no YAML file overrides it.
func Default() *Policy {
	policy := &Policy{}
	setDefaults(policy)
	return policy
}

func setDefaults(policy *Policy) {
	if policy.Schedule.SlotsPerDay == 0 {
		policy.Schedule.SlotsPerDay = 4
	}
	if policy.Schedule.FirstSlotTime == "" {
		policy.Schedule.FirstSlotTime = "03:00"
	}
	if policy.Schedule.SlotSpacingMinutes == 0 {
		policy.Schedule.SlotSpacingMinutes = 240
	}
	if policy.Schedule.PrepareDelayMin == 0 {
		policy.Schedule.PrepareDelayMin = 10
	}
	if policy.Schedule.PostbatchDelayMin == 0 {
		policy.Schedule.PostbatchDelayMin = 30
	}
	if policy.Schedule.TickSeconds == 0 {
		policy.Schedule.TickSeconds = 60
	}
	if policy.Schedule.StaleRunningMin == 0 {
		policy.Schedule.StaleRunningMin = 45
	}
	if policy.Schedule.RetentionDays == 0 {
		policy.Schedule.RetentionDays = 14
	}
	if policy.Selection.BatchSize == 0 {
		policy.Selection.BatchSize = 200
	}
	if policy.Selection.MinTrackCount == 0 {
		policy.Selection.MinTrackCount = 3
	}
	if len(policy.Selection.MixPrefixes) == 0 {
		policy.Selection.MixPrefixes = []string{"RD"}
	}
	if policy.Refresh.TrackCap == 0 {
		policy.Refresh.TrackCap = 500
	}
	if policy.Refresh.ChunkSize == 0 {
		policy.Refresh.ChunkSize = 200
	}
	if policy.Catalog.PageSize == 0 {
		policy.Catalog.PageSize = 50
	}
	if policy.Catalog.MaxRetries == 0 {
		policy.Catalog.MaxRetries = 3
	}
	if policy.Catalog.InitialBackoffSec == 0 {
		policy.Catalog.InitialBackoffSec = 2
	}
	if policy.Catalog.RequestTimeoutSec == 0 {
		policy.Catalog.RequestTimeoutSec = 30
	}
	if policy.Catalog.RequestsPerSecond == 0 {
		policy.Catalog.RequestsPerSecond = 2
	}
}

func validate(policy *Policy) error {
	if policy.Schedule.SlotsPerDay < 1 {
		return fmt.Errorf("slots_per_day must be at least 1")
	}
	if _, _, err := ParseSlotTime(policy.Schedule.FirstSlotTime); err != nil {
		return err
	}
	if policy.Selection.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}
	if policy.Refresh.TrackCap < 1 {
		return fmt.Errorf("track_cap must be at least 1")
	}
	if policy.Refresh.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be at least 1")
	}
	return nil
}

// ParseSlotTime parses an "HH:MM" policy value into hour and minute.
func ParseSlotTime(value string) (int, int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid slot time %q (want HH:MM): %w", value, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid slot time %q (want HH:MM)", value)
	}
	return hour, minute, nil
}

package predicate

import (
	"fmt"
	"math"

	"github.com/darianrosebrook/cortex/internal/world"
)

// Built-in sensor predicates available to every evaluator. Each one branches
// on field presence explicitly before looking at the value, so a zero
// reading is compared as zero rather than dropped as missing data.

func registerBuiltins(e *Evaluator) {
	// Registration of package-defined predicates over fresh maps cannot
	// collide, so errors are impossible here.
	_ = e.RegisterFunc("lightLevelAtLeast", lightLevelAtLeast)
	_ = e.RegisterFunc("has_item", hasItem)
	_ = e.RegisterFunc("health_below", healthBelow)
	_ = e.RegisterFunc("is_night", isNight)
	_ = e.RegisterFunc("distance_to_lte", distanceToLTE)
}

// lightLevelAtLeast reports whether world.lightLevel >= args.min. A light
// level of 0 is total darkness and compares as the number 0; only a snapshot
// with no lightLevel field at all reads as false.
func lightLevelAtLeast(args map[string]any, snapshot *world.Snapshot) (bool, error) {
	min, err := numberArg(args, "min")
	if err != nil {
		return false, err
	}
	level, found := snapshot.Number("lightLevel")
	if !found {
		return false, nil
	}
	return level >= min, nil
}

// hasItem reports whether the inventory holds at least args.count (default 1)
// of args.item. A present count of 0 compares as 0.
func hasItem(args map[string]any, snapshot *world.Snapshot) (bool, error) {
	item, err := stringArg(args, "item")
	if err != nil {
		return false, err
	}
	required := 1.0
	if _, present := args["count"]; present {
		required, err = numberArg(args, "count")
		if err != nil {
			return false, err
		}
	}
	count, found := snapshot.Number("inventory." + item)
	if !found {
		return false, nil
	}
	return count >= required, nil
}

// healthBelow reports whether world.health < args.threshold.
func healthBelow(args map[string]any, snapshot *world.Snapshot) (bool, error) {
	threshold, err := numberArg(args, "threshold")
	if err != nil {
		return false, err
	}
	health, found := snapshot.Number("health")
	if !found {
		return false, nil
	}
	return health < threshold, nil
}

// isNight reads the explicit boolean world.isNight. An explicit false is a
// valid daytime reading, not missing data.
func isNight(_ map[string]any, snapshot *world.Snapshot) (bool, error) {
	night, found := snapshot.Bool("isNight")
	if !found {
		return false, nil
	}
	return night, nil
}

// distanceToLTE reports whether the straight-line distance from the agent's
// position to args.{x,y,z} is at most args.max. Position components default
// to 0 only when the position object itself is present; a snapshot with no
// position at all reads as false.
func distanceToLTE(args map[string]any, snapshot *world.Snapshot) (bool, error) {
	max, err := numberArg(args, "max")
	if err != nil {
		return false, err
	}
	if _, found := snapshot.Lookup("position"); !found {
		return false, nil
	}
	var sum float64
	for _, axis := range []string{"x", "y", "z"} {
		target := 0.0
		if _, present := args[axis]; present {
			target, err = numberArg(args, axis)
			if err != nil {
				return false, err
			}
		}
		here, _ := snapshot.Number("position." + axis)
		d := here - target
		sum += d * d
	}
	return math.Sqrt(sum) <= max, nil
}

func numberArg(args map[string]any, key string) (float64, error) {
	value, present := args[key]
	if !present {
		return 0, fmt.Errorf("predicate argument %q is required", key)
	}
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("predicate argument %q must be a number, got %T", key, value)
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	value, present := args[key]
	if !present {
		return "", fmt.Errorf("predicate argument %q is required", key)
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("predicate argument %q must be a string, got %T", key, value)
	}
	return s, nil
}

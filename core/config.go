package core

// NavigationConfig holds the tunable thresholds of the navigation engine. All
// distances share the network's linear unit.
type NavigationConfig struct {
	// Enabled switches guidance on. Default: true
	Enabled bool

	// OffRouteTolerance is the matched-road distance at or beyond which the
	// vehicle counts as off map. Default: 50
	OffRouteTolerance float64

	// ManeuverDistance is how close to a turn junction the maneuver is
	// announced. Default: 150
	ManeuverDistance float64

	// ArrivalDistance is how close to the destination arrival is
	// announced. Default: 50
	ArrivalDistance float64

	// LookbackPoints is how many polyline vertices the maneuver vectors
	// reach away from the junction. Default: 5
	LookbackPoints int

	// StraightDot is the dot product above which a road change counts as
	// straight on. Default: 0.8
	StraightDot float64

	// PathCacheSize bounds the shortest-path LRU. Default: 256
	PathCacheSize int
}

// DefaultNavigationConfig returns a NavigationConfig with the standard
// thresholds.
func DefaultNavigationConfig() NavigationConfig {
	return NavigationConfig{
		Enabled:           true,
		OffRouteTolerance: 50,
		ManeuverDistance:  150,
		ArrivalDistance:   50,
		LookbackPoints:    5,
		StraightDot:       0.8,
		PathCacheSize:     defaultPathCacheSize,
	}
}

// ApplyDefaults replaces zero or invalid fields with defaults. StraightDot
// must lie strictly inside (-1, 1). Enabled is left as given.
func (c NavigationConfig) ApplyDefaults() NavigationConfig {
	def := DefaultNavigationConfig()
	if c.OffRouteTolerance <= 0 {
		c.OffRouteTolerance = def.OffRouteTolerance
	}
	if c.ManeuverDistance <= 0 {
		c.ManeuverDistance = def.ManeuverDistance
	}
	if c.ArrivalDistance <= 0 {
		c.ArrivalDistance = def.ArrivalDistance
	}
	if c.LookbackPoints <= 0 {
		c.LookbackPoints = def.LookbackPoints
	}
	if c.StraightDot == 0 || c.StraightDot <= -1 || c.StraightDot >= 1 {
		c.StraightDot = def.StraightDot
	}
	if c.PathCacheSize <= 0 {
		c.PathCacheSize = def.PathCacheSize
	}
	return c
}

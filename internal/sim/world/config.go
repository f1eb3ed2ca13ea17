package world

type WorldConfig struct {
	ID         string
	TickRateHz int
	Height     int
	Seed       int64
	BoundaryR  int

	// Worldgen tuning.
	SpawnClearRadius int
	SurfaceBase      int
	SurfaceAmp       int
	OrePermille      int
	ScatterPermille  int

	// Starter items granted to newly joined agents. Nil means "use the
	// catalog starter counts"; non-nil but empty means no starter items.
	StarterItems map[string]int

	// Action tuning.
	MoveStepMax int
	PlaceReach  int

	RateLimits RateLimitConfig
}

type RateLimitConfig struct {
	MoveWindowTicks  int
	MoveMax          int
	BrushWindowTicks int
	BrushMax         int
	PlaceWindowTicks int
	PlaceMax         int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "w_main"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.Height <= 0 {
		c.Height = 64
	}
	if c.BoundaryR <= 0 {
		c.BoundaryR = 256
	}
	if c.SpawnClearRadius <= 0 {
		c.SpawnClearRadius = 8
	}
	if c.SurfaceBase <= 0 {
		c.SurfaceBase = 8
	}
	if c.SurfaceAmp <= 0 {
		c.SurfaceAmp = 4
	}
	if c.OrePermille <= 0 {
		c.OrePermille = 18
	}
	if c.ScatterPermille <= 0 {
		c.ScatterPermille = 30
	}
	if c.MoveStepMax <= 0 {
		c.MoveStepMax = 8
	}
	if c.PlaceReach <= 0 {
		c.PlaceReach = 8
	}
	c.RateLimits.applyDefaults()
}

func (rl *RateLimitConfig) applyDefaults() {
	if rl.MoveWindowTicks <= 0 {
		rl.MoveWindowTicks = 50
	}
	if rl.MoveMax <= 0 {
		rl.MoveMax = 100
	}
	if rl.BrushWindowTicks <= 0 {
		rl.BrushWindowTicks = 50
	}
	if rl.BrushMax <= 0 {
		rl.BrushMax = 40
	}
	if rl.PlaceWindowTicks <= 0 {
		rl.PlaceWindowTicks = 50
	}
	if rl.PlaceMax <= 0 {
		rl.PlaceMax = 120
	}
}

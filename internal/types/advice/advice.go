package advice

type EcoAdvice struct {
	Tip         string  `json:"tip"`
	ImpactScore float64 `json:"impactScore"`
	Analysis    string  `json:"analysis"`
	Fallback    bool    `json:"fallback"`
}

// Default is served whenever the generator fails or replies with something
// unusable.
func Default() *EcoAdvice {
	return &EcoAdvice{
		Tip:         "Try walking more for short distances to reduce your footprint!",
		ImpactScore: 70,
		Analysis:    "Keep up the good work on your plant-based diet!",
		Fallback:    true,
	}
}

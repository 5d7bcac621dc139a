package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ecoQuestAPI/internal/footprint"
	"ecoQuestAPI/internal/types/challenge"
)

// Catalog is the read-only set of joinable challenges.
type Catalog struct {
	defs []challenge.Definition
	byID map[string]challenge.Definition
}

type file struct {
	Challenges []challenge.Definition `yaml:"challenges"`
}

func New(defs []challenge.Definition) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]challenge.Definition, len(defs))}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate challenge id %q", d.ID)
		}
		c.byID[d.ID] = d
		c.defs = append(c.defs, d)
	}
	return c, nil
}

// Load reads a YAML catalog of the form:
//
//	challenges:
//	  - id: log-5
//	    title: Consistency Starter
//	    metric: logs
//	    target: 5
//	    reward: 150
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read challenge catalog: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse challenge catalog: %w", err)
	}
	if len(f.Challenges) == 0 {
		return nil, fmt.Errorf("challenge catalog %s is empty", path)
	}
	return New(f.Challenges)
}

func Default() *Catalog {
	c, err := New(defaultDefinitions)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) All() []challenge.Definition {
	out := make([]challenge.Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

func (c *Catalog) Get(id string) (challenge.Definition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

var defaultDefinitions = []challenge.Definition{
	{
		ID:          "log-5",
		Title:       "Consistency Starter",
		Description: "Log your day 5 times.",
		Reward:      150,
		Target:      5,
		Metric:      challenge.MetricLogs,
		Icon:        "📅",
	},
	{
		ID:            "pedal-power",
		Title:         "Pedal Power",
		Description:   "Bike instead of driving on 3 days.",
		Reward:        200,
		Target:        3,
		Metric:        challenge.MetricTransport,
		TransportType: footprint.Bike,
		Icon:          "🚲",
	},
	{
		ID:            "rail-rider",
		Title:         "Rail Rider",
		Description:   "Take the train 5 times.",
		Reward:        180,
		Target:        5,
		Metric:        challenge.MetricTransport,
		TransportType: footprint.Train,
		Icon:          "🚆",
	},
	{
		ID:          "plant-powered",
		Title:       "Plant Powered Week",
		Description: "Eat vegan or vegetarian on 7 days.",
		Reward:      250,
		Target:      7,
		Metric:      challenge.MetricFood,
		FoodTypes:   []footprint.FoodChoice{footprint.Vegan, footprint.Vegetarian},
		Icon:        "🥗",
	},
	{
		ID:          "water-watcher",
		Title:       "Water Watcher",
		Description: "Track 500 liters of water use.",
		Reward:      120,
		Target:      500,
		Metric:      challenge.MetricWater,
		Icon:        "💧",
	},
}

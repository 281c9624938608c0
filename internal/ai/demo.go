package ai

import (
	"context"
	"hash/fnv"

	"github.com/garnizeh/wildspot/internal/models"
)

// DemoProvider returns canned classifications and suggestions without calling a model.
// Every classification it produces is flagged Demo so callers can label it.
type DemoProvider struct{}

var (
	_ Classifier = DemoProvider{}
	_ Suggester  = DemoProvider{}
)

const demoName = "demo"

var demoReports = []models.AnimalReport{
	{Animal: "Red Fox", Details: models.AnimalDetails{
		Habitat:          "Woodland edges, farmland and towns",
		Diet:             "Small mammals, birds, fruit and scraps",
		Behavior:         "Mostly nocturnal and solitary outside the breeding season",
		InterestingFacts: []string{"Uses the Earth's magnetic field when pouncing", "Can hear a watch ticking 40 m away"},
	}},
	{Animal: "European Robin", Details: models.AnimalDetails{
		Habitat:          "Gardens, hedgerows and woodland",
		Diet:             "Insects, worms and berries",
		Behavior:         "Territorial and sings all year round",
		InterestingFacts: []string{"Both sexes sing", "Often follows gardeners to catch disturbed worms"},
	}},
	{Animal: "Grey Heron", Details: models.AnimalDetails{
		Habitat:          "Rivers, lakes and estuaries",
		Diet:             "Fish, amphibians and small mammals",
		Behavior:         "Stands motionless in shallow water waiting for prey",
		InterestingFacts: []string{"Nests in colonies called heronries", "Can live for over 20 years"},
	}},
}

// Classify picks a canned report deterministically from the image bytes.
func (DemoProvider) Classify(_ context.Context, image []byte) ClassificationResult {
	h := fnv.New32a()
	_, _ = h.Write(image)
	r := OK(demoName, demoReports[h.Sum32()%uint32(len(demoReports))])
	r.Demo = true
	return r
}

func (DemoProvider) Suggest(_ context.Context, _ models.LocationInfo) (*Suggestions, error) {
	return &Suggestions{
		Daily: []Suggestion{
			{Animal: "Pigeon", Hint: "Town squares and rooftops"},
			{Animal: "House Sparrow", Hint: "Hedges and bird feeders"},
			{Animal: "Squirrel", Hint: "Parks with mature trees"},
		},
		Weekly: []Suggestion{
			{Animal: "Hedgehog", Hint: "Gardens at dusk"},
			{Animal: "Kingfisher", Hint: "Slow rivers with overhanging branches"},
		},
	}, nil
}

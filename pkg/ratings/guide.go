package ratings

// GuideEntry describes what a single score means for a category.
type GuideEntry struct {
	Score       int    `json:"score"`
	Description string `json:"description"`
}

// CategoryGuide is the full 1-10 scale for one category.
type CategoryGuide struct {
	Category string       `json:"category"`
	Entries  []GuideEntry `json:"entries"`
}

var guideDescriptions = map[string][MaxScore]string{
	CategoryCharacters: {
		"Extremely poor character development, unrealistic or annoying characters",
		"Poor character development, mostly flat or stereotypical characters",
		"Below average characters, some development but lacking depth",
		"Mediocre characters, basic development with some interesting moments",
		"Average characters, decent development but nothing exceptional",
		"Good characters, solid development with some memorable traits",
		"Very good characters, well-developed with clear motivations",
		"Excellent characters, complex and engaging with strong arcs",
		"Outstanding characters, deeply developed and emotionally resonant",
		"Perfect characters, unforgettable and masterfully crafted",
	},
	CategoryWorldBuilding: {
		"No world building, confusing or inconsistent setting",
		"Poor world building, basic setting with many gaps",
		"Below average world building, some details but lacks cohesion",
		"Mediocre world building, functional but not particularly engaging",
		"Average world building, decent setting with adequate detail",
		"Good world building, well-constructed with interesting elements",
		"Very good world building, immersive and well-thought-out",
		"Excellent world building, rich and detailed environment",
		"Outstanding world building, incredibly immersive and original",
		"Perfect world building, absolutely captivating and flawless",
	},
	CategoryPlot: {
		"Terrible plot, incoherent or extremely boring",
		"Poor plot, confusing or unengaging storyline",
		"Below average plot, some interesting moments but overall weak",
		"Mediocre plot, functional but predictable or slow",
		"Average plot, decent story with some engaging elements",
		"Good plot, well-structured with engaging developments",
		"Very good plot, compelling with good pacing and twists",
		"Excellent plot, gripping and well-executed storyline",
		"Outstanding plot, masterfully crafted and engaging",
		"Perfect plot, absolutely brilliant and unforgettable",
	},
	CategoryWritingStyle: {
		"Terrible writing, difficult to read or poorly constructed",
		"Poor writing style, awkward prose or frequent errors",
		"Below average writing, readable but lacks flow or elegance",
		"Mediocre writing style, functional but not particularly engaging",
		"Average writing style, clear and readable prose",
		"Good writing style, well-crafted and engaging prose",
		"Very good writing style, beautiful and flowing language",
		"Excellent writing style, masterful use of language",
		"Outstanding writing style, exceptional and memorable prose",
		"Perfect writing style, absolutely beautiful and flawless",
	},
	CategoryEnjoyment: {
		"Hated it, could barely finish reading",
		"Disliked it strongly, struggled to continue",
		"Disliked it, not enjoyable but manageable",
		"Below average enjoyment, some redeeming qualities",
		"Average enjoyment, okay read but nothing special",
		"Good enjoyment, liked it and would recommend",
		"Very enjoyable, really liked it and engaged throughout",
		"Excellent enjoyment, loved it and couldn't put it down",
		"Outstanding enjoyment, absolutely loved every moment",
		"Perfect enjoyment, one of the best books ever read",
	},
}

// Guide returns the scoring guide for every category in display order.
func Guide() []CategoryGuide {
	guide := make([]CategoryGuide, 0, len(Categories))
	for _, category := range Categories {
		guide = append(guide, CategoryGuide{
			Category: category,
			Entries:  entries(category),
		})
	}
	return guide
}

// Describe returns the guide text for a single score, or an empty string when
// the category or score is unknown.
func Describe(category string, score int) string {
	descriptions, ok := guideDescriptions[category]
	if !ok || score < MinScore || score > MaxScore {
		return ""
	}
	return descriptions[score-1]
}

func entries(category string) []GuideEntry {
	descriptions := guideDescriptions[category]
	out := make([]GuideEntry, 0, MaxScore)
	for i, d := range descriptions {
		out = append(out, GuideEntry{Score: i + 1, Description: d})
	}
	return out
}

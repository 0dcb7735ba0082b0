// Package workflow drives a request through the conversation graph:
// image validation, intent classification, query planning, retrieval,
// and the terminal content responses.
package workflow

// Stage identifies a node in the conversation graph.
type Stage int

const (
	StageValidateImage Stage = iota
	StageDescribeImage
	StageRejectImage
	StageClassifyIntent
	StageWelcome
	StageRejectText
	StagePlanQuery
	StageRetrieve
	StageEnd
)

var stageNames = map[Stage]string{
	StageValidateImage:  "validate_image",
	StageDescribeImage:  "describe_image",
	StageRejectImage:    "reject_image",
	StageClassifyIntent: "classify_intent",
	StageWelcome:        "welcome",
	StageRejectText:     "reject_text",
	StagePlanQuery:      "plan_query",
	StageRetrieve:       "retrieve",
	StageEnd:            "end",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// transitions is the closed edge set of the graph. Every path reaches
// StageEnd without revisiting a stage.
var transitions = map[Stage][]Stage{
	StageValidateImage:  {StageDescribeImage, StageRejectImage, StageClassifyIntent},
	StageDescribeImage:  {StageClassifyIntent},
	StageRejectImage:    {StageEnd},
	StageClassifyIntent: {StageWelcome, StageRejectText, StagePlanQuery},
	StageWelcome:        {StageEnd},
	StageRejectText:     {StageEnd},
	StagePlanQuery:      {StageRetrieve},
	StageRetrieve:       {StageEnd},
	StageEnd:            {},
}

func allowed(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

package analyze

// UnknownComponent is the bottleneck reported when neither table matches.
const UnknownComponent = "unknown"

type diagnosis struct {
	component string
	fix       string
}

// #region category-table
var categoryTable = map[string]diagnosis{
	"needle_in_haystack": {
		"retrieval:keyword_search",
		"Entity-centric indexing: store entity names as indexed fields so retrieval can find facts about specific people/projects.",
	},
	"meta_memory": {
		"retrieval:aggregation",
		"Add aggregation queries: route 'how many' / 'list all' questions to COUNT/DISTINCT queries instead of text search.",
	},
	"source_attribution": {
		"retrieval:source_tracking",
		"Improve source label propagation: ensure source_label is included in retrieval results.",
	},
	"temporal_evolution": {
		"retrieval:temporal_ordering",
		"Improve temporal metadata coverage: ensure all temporally-ordered facts have temporal_index metadata for chronological sorting.",
	},
	"cross_reference": {
		"retrieval:graph_traversal",
		"Improve graph traversal: expand hop depth to connect facts across different information blocks.",
	},
	"numerical_precision": {
		"synthesis:arithmetic",
		"Improve arithmetic validation: ensure calculate tool is used for all mathematical operations.",
	},
	"distractor_resistance": {
		"retrieval:confidence_weighting",
		"Improve confidence weighting: distractor blocks should have lower confidence and be deprioritized.",
	},
}

// #endregion category-table

// #region dimension-table
var dimensionTable = map[string]diagnosis{
	"factual_accuracy":       {"retrieval:coverage", "Increase retrieval coverage"},
	"specificity":            {"retrieval:precision", "Improve retrieval precision"},
	"temporal_awareness":     {"retrieval:temporal", "Add temporal metadata"},
	"source_attribution":     {"retrieval:provenance", "Improve source tracking"},
	"confidence_calibration": {"synthesis:calibration", "Improve confidence expression"},
}

// #endregion dimension-table

package mcp

func (s *Server) listTools() interface{} {
	windowSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"value": map[string]interface{}{"type": "integer", "description": "Window length"},
			"unit":  map[string]interface{}{"type": "string", "enum": []string{"second", "minute", "hour", "day", "week"}},
		},
		"required": []string{"value", "unit"},
	}

	querySchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"steps": map[string]interface{}{
				"type":        "array",
				"description": "Ordered funnel steps. Each step matches by 'event' name, 'actionId', or 'anyEvent', optionally narrowed by property filters.",
				"items":       map[string]interface{}{"type": "object"},
			},
			"exclusions": map[string]interface{}{
				"type":        "array",
				"description": "Exclusion matchers with 'fromStep'/'toStep' (0-indexed). A qualifying event inside the range disqualifies the whole lineage.",
				"items":       map[string]interface{}{"type": "object"},
			},
			"window":   windowSchema,
			"ordering": map[string]interface{}{"type": "string", "enum": []string{"ordered", "strict", "unordered"}, "description": "Step matching discipline (default: ordered)."},
			"breakdown": map[string]interface{}{
				"type":        "object",
				"description": "Optional result partitioning: {source: event|actor|cohort, keys: [...], cohorts: [...]}.",
			},
			"attribution":     map[string]interface{}{"type": "string", "enum": []string{"first_touch", "last_touch", "step", "all_events"}, "description": "Which breakdown value represents a run (default: first_touch)."},
			"attributionStep": map[string]interface{}{"type": "integer", "description": "Step index for the 'step' attribution policy."},
			"breakdownLimit":  map[string]interface{}{"type": "integer", "description": "Top-K breakdown buckets to keep before folding into 'Other'."},
			"from":            map[string]interface{}{"type": "string", "description": "Query range start (YYYY-MM-DD or RFC3339)."},
			"to":              map[string]interface{}{"type": "string", "description": "Query range end (YYYY-MM-DD or RFC3339)."},
		},
		"required": []string{"steps", "window"},
	}

	return map[string]interface{}{
		"tools": []interface{}{
			map[string]interface{}{
				"name":        "load_events",
				"description": "Ingest a JSONL file of actor events into a named dataset. Each line is one event: {actorId, eventId, event, ts (unix micros), properties, actorProperties}.",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"path":    map[string]interface{}{"type": "string", "description": "Path to the JSONL file"},
						"dataset": map[string]interface{}{"type": "string", "description": "Dataset id to load into"},
					},
					"required": []string{"path", "dataset"},
				},
			},
			map[string]interface{}{
				"name":        "dataset_info",
				"description": "Report event volume and time coverage for a loaded dataset.",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"dataset": map[string]interface{}{"type": "string"},
					},
					"required": []string{"dataset"},
				},
			},
			map[string]interface{}{
				"name": "run_funnel",
				"description": "Run a funnel conversion analysis over a dataset: per-step actor counts plus mean/median conversion times, " +
					"under ordered, strict or unordered step matching, with optional exclusions and breakdown partitioning.",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"dataset": map[string]interface{}{"type": "string"},
						"query":   querySchema,
					},
					"required": []string{"dataset", "query"},
				},
			},
			map[string]interface{}{
				"name": "list_actors_at_step",
				"description": "List the actor ids at one funnel step. 'step' is 1-indexed: positive means reached that step, " +
					"negative means dropped off immediately before it. Optionally filtered to one breakdown value.",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"dataset":   map[string]interface{}{"type": "string"},
						"query":     querySchema,
						"step":      map[string]interface{}{"type": "integer"},
						"breakdown": map[string]interface{}{"type": "string", "description": "Optional breakdown value to filter by"},
						"offset":    map[string]interface{}{"type": "integer"},
						"limit":     map[string]interface{}{"type": "integer"},
					},
					"required": []string{"dataset", "query", "step"},
				},
			},
		},
	}
}

// Package defectscope analyzes vehicle safety complaints in process: it aggregates a
// complaint batch into severity, component, state and trend statistics, builds an
// embedding index over complaint narratives and ranks them against a free-text query.
//
//	client, _ := defectscope.New(defectscope.WithOpenAI(os.Getenv("OPENAI_API_KEY"), ""))
//	stats := client.Analyze(records)
//	idx := client.BuildIndex(ctx, records)
//	hits, _ := client.Search(ctx, idx, "brake pedal went to the floor", 5)
//
// Analyze needs no embedder. BuildIndex and Search fail every record with
// ErrEmbeddingProviderError until one is configured.
package defectscope

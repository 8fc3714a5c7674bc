// Package embedder turns text into vectors for similarity search.
//
// One provider exists per supported LLM backend: Gemini, OpenAI and Ollama.
// All of them share batching, LRU caching keyed by model and content hash, and
// exponential-backoff retry for transient HTTP failures.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "openai",
//	    APIKey:    key,
//	    Model:     "text-embedding-3-small",
//	    CacheSize: 10000,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "def foo(): pass",
//	})
//
// # Batch Processing
//
// GenerateBatch accepts up to MaxBatchSize texts. Cached texts are served
// locally and only the misses are sent to the provider:
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: texts,
//	})
//
// # Errors
//
// Client errors (4xx other than 429) are returned immediately. Server errors,
// rate limiting and transport failures are retried up to MaxRetries times
// before ErrProviderFailed is returned.
package embedder

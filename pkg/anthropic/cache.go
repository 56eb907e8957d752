package anthropic

// BuildCachedSystemBlocks splits a system prompt into a cached static part
// and an uncached dynamic part. The static part should carry the instructions
// that repeat across documents so the API can serve them from cache.
func BuildCachedSystemBlocks(static, dynamic string) []SystemBlock {
	blocks := []SystemBlock{
		{
			Text:         static,
			CacheControl: &CacheControl{TTL: "5m"},
		},
	}
	if dynamic != "" {
		blocks = append(blocks, SystemBlock{Text: dynamic})
	}
	return blocks
}

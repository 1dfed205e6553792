package extract

// Default returns the platform chain: image files, embedded PE icons, then
// the native system lookup, with the default resolvers for retry.
func Default(opts ...Option) *Chain {
	strategies := []Strategy{ImageFile{}, PEIcon{}, NewSystem()}
	return NewChain(strategies, append([]Option{WithResolver(DefaultResolvers())}, opts...)...)
}

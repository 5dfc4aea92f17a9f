package foreman

type factory struct{}

var Factory factory

func (f factory) NewWorld() *World {
	return newWorld()
}

func (f factory) NewBuilder() *Builder {
	return newBuilder()
}

func FactoryNewChannel[E any]() *Channel[E] {
	return newChannel[E]()
}

func FactoryNewVec[T any]() Backend[T] {
	return &Vec[T]{}
}

func FactoryNewPaged[T any]() Backend[T] {
	return &Paged[T]{}
}

func FactoryNewNull[T any]() Backend[T] {
	return &Null[T]{}
}

// FactoryNewFlagged wraps inner in a change-tracking backend.
func FactoryNewFlagged[T any](inner Backend[T]) Backend[T] {
	return newFlagged(inner)
}

package memstore

import "context"

// NullBackend always reports NotConnected and is the registry's zero
// value, so a coordinator started before any backend is configured fails
// safe rather than nil-panicking.
type NullBackend struct{}

func (NullBackend) Initialize(context.Context) error { return notConnected() }
func (NullBackend) Capabilities() Capabilities       { return Capabilities{} }
func (NullBackend) IsConnected() bool                { return false }

func (NullBackend) Store(context.Context, Entry) (Entry, error) { return Entry{}, notConnected() }
func (NullBackend) Retrieve(context.Context, string) (*Entry, error) {
	return nil, notConnected()
}
func (NullBackend) Search(context.Context, string, SearchOptions) ([]Scored, error) {
	return nil, notConnected()
}
func (NullBackend) Update(context.Context, string, Entry) (bool, error) { return false, notConnected() }
func (NullBackend) Delete(context.Context, string) (bool, error)        { return false, notConnected() }
func (NullBackend) StoreBatch(context.Context, []Entry) ([]BatchResult, error) {
	return nil, notConnected()
}

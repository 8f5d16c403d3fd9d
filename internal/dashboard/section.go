package dashboard

// Section is the settled result of one dashboard source: either Available
// with data or Unavailable with the error that made it so.
type Section[T any] struct {
	Name  string
	value T
	err   error
	ok    bool
}

func Available[T any](name string, value T) Section[T] {
	return Section[T]{Name: name, value: value, ok: true}
}

func Unavailable[T any](name string, err error) Section[T] {
	return Section[T]{Name: name, err: err}
}

func (s Section[T]) OK() bool {
	return s.ok
}

func (s Section[T]) Err() error {
	return s.err
}

func (s Section[T]) Value() (T, bool) {
	return s.value, s.ok
}

// OrDefault is the single place where a failed section turns into its default.
func (s Section[T]) OrDefault(def T) T {
	if !s.ok {
		return def
	}
	return s.value
}

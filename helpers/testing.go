package helpers

type Fataler interface {
	Fatal(...interface{})
}

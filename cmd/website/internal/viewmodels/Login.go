package viewmodels

type Login struct {
	BaseViewModel

	Email         string
	GoogleEnabled bool
}

type Signup struct {
	BaseViewModel

	Email         string
	GoogleEnabled bool
}

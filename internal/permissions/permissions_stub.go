//go:build !darwin

package permissions

// CheckMicrophone always reports access outside macOS; device errors
// surface when the stream is opened instead.
func CheckMicrophone() Status {
	return Authorized
}

func RequestMicrophone() {}

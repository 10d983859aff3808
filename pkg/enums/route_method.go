package enums

import "fmt"

// RouteMethod records which strategy produced a route's distance and duration.
type RouteMethod string

const (
	RouteMethodProvider       RouteMethod = "provider"
	RouteMethodDirect         RouteMethod = "direct"
	RouteMethodDirectFallback RouteMethod = "direct-fallback"
)

var validRouteMethods = []RouteMethod{
	RouteMethodProvider,
	RouteMethodDirect,
	RouteMethodDirectFallback,
}

// String implements fmt.Stringer.
func (m RouteMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a known RouteMethod.
func (m RouteMethod) IsValid() bool {
	for _, candidate := range validRouteMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseRouteMethod converts raw input into a RouteMethod.
func ParseRouteMethod(value string) (RouteMethod, error) {
	for _, candidate := range validRouteMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid route method %q", value)
}

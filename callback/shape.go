package callback

import (
	"net/url"

	"github.com/djokodonev/egav-web-frontend/exchange"
	"github.com/djokodonev/egav-web-frontend/internal/utils"
)

// Shape is the classified form of a provider callback URL. Exactly one of the
// concrete shapes is produced per URL by Classify.
type Shape interface {
	isShape()
}

// ErrorShape is a callback carrying a provider error or the bridge's own
// action-failed marker.
type ErrorShape struct {
	Code        string
	Description string
}

// FragmentTokens is the social/central-bridge shape, with the token pair
// riding in the URL fragment instead of a code.
type FragmentTokens struct {
	Pair *exchange.TokenPair
}

// CodeAndState is the direct authorization-code shape.
type CodeAndState struct {
	Code  string
	State string
}

// Incomplete is a callback with neither tokens, a code, nor an error on it.
type Incomplete struct{}

func (ErrorShape) isShape()     {}
func (FragmentTokens) isShape() {}
func (CodeAndState) isShape()   {}
func (Incomplete) isShape()     {}

const authFailedMarker = "auth_failed"

// Classify parses a callback URL into its shape. Error indicators win over
// everything else, fragment tokens win over a query code, and a URL with none
// of the three is Incomplete.
func Classify(u *url.URL) Shape {
	query := u.Query()
	fragment, err := url.ParseQuery(u.Fragment)
	if err != nil {
		fragment = url.Values{}
	}

	if shape, ok := classifyError(query, fragment); ok {
		return shape
	}
	if shape, ok := classifyFragmentTokens(fragment); ok {
		return shape
	}

	code := query.Get("code")
	state := query.Get("state")
	if code != "" && state != "" {
		return CodeAndState{Code: code, State: state}
	}
	return Incomplete{}
}

func classifyError(query, fragment url.Values) (Shape, bool) {
	for _, values := range []url.Values{query, fragment} {
		if code := values.Get("error"); code != "" {
			return ErrorShape{
				Code:        code,
				Description: values.Get("error_description"),
			}, true
		}
	}
	if query.Get(authFailedMarker) == "true" {
		return ErrorShape{Code: authFailedMarker}, true
	}
	return nil, false
}

func classifyFragmentTokens(fragment url.Values) (Shape, bool) {
	accessToken := fragment.Get("access_token")
	if accessToken == "" {
		return nil, false
	}

	pair := &exchange.TokenPair{
		AccessToken: accessToken,
		TokenType:   fragment.Get("token_type"),
		ExpiresIn:   utils.ParseIntDefault(fragment.Get("expires_in"), 0),
	}
	if refreshToken := fragment.Get("refresh_token"); refreshToken != "" {
		pair.RefreshToken = utils.Ptr(refreshToken)
	}
	if raw := fragment.Get("refresh_expires_in"); raw != "" {
		pair.RefreshExpiresIn = utils.Ptr(utils.ParseIntDefault(raw, 0))
	}
	if idToken := fragment.Get("id_token"); idToken != "" {
		pair.IdToken = utils.Ptr(idToken)
	}
	return FragmentTokens{Pair: pair}, true
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeToken creates a signed HS256 JWT from the given secret and claims.
func makeToken(secret string, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString([]byte(secret))
	return signed
}

func TestNewHS256Validator_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewHS256Validator("", "")
	require.Error(t, err)

	v, err := NewHS256Validator("s3cret", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), v.secret)
}

func TestHS256Validator_Validate(t *testing.T) {
	t.Parallel()

	const secret = "test-secret-32-bytes-long-xxxxx"
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name        string
		audience    string
		token       string
		wantErr     bool
		wantSub     string
		wantName    string
		wantPicture string
		wantAud     []string
	}{
		{
			name: "valid token with profile claims",
			token: makeToken(secret, jwt.MapClaims{
				"sub":     "auth0|alice",
				"iss":     "https://tenant.example.com/",
				"name":    "Alice",
				"picture": "https://cdn.example.com/alice.png",
				"aud":     "expensync",
				"exp":     exp,
			}),
			wantSub:     "auth0|alice",
			wantName:    "Alice",
			wantPicture: "https://cdn.example.com/alice.png",
			wantAud:     []string{"expensync"},
		},
		{
			name: "audience array",
			token: makeToken(secret, jwt.MapClaims{
				"sub": "auth0|bob",
				"aud": []string{"a", "b"},
				"exp": exp,
			}),
			wantSub: "auth0|bob",
			wantAud: []string{"a", "b"},
		},
		{
			name:     "audience enforced",
			audience: "expensync",
			token: makeToken(secret, jwt.MapClaims{
				"sub": "auth0|carol",
				"aud": "other-app",
				"exp": exp,
			}),
			wantErr: true,
		},
		{
			name: "expired",
			token: makeToken(secret, jwt.MapClaims{
				"sub": "auth0|dave",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			wantErr: true,
		},
		{
			name:    "wrong secret",
			token:   makeToken("another-secret", jwt.MapClaims{"sub": "x", "exp": exp}),
			wantErr: true,
		},
		{
			name:    "missing subject",
			token:   makeToken(secret, jwt.MapClaims{"exp": exp}),
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "not-a-jwt",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, err := NewHS256Validator(secret, tt.audience)
			require.NoError(t, err)

			claims, err := v.Validate(context.Background(), tt.token)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidToken))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantSub, claims.Subject)
			assert.Equal(t, tt.wantName, claims.Name)
			assert.Equal(t, tt.wantPicture, claims.Picture)
			assert.Equal(t, tt.wantAud, claims.Audience)
		})
	}
}

func TestHS256Validator_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	v, err := NewHS256Validator("secret", "")
	require.NoError(t, err)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "auth0|mallory",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestChainValidator(t *testing.T) {
	t.Parallel()

	first, err := NewHS256Validator("first-secret", "")
	require.NoError(t, err)
	second, err := NewHS256Validator("second-secret", "")
	require.NoError(t, err)
	chain := ChainValidator{first, second}

	token := makeToken("second-secret", jwt.MapClaims{
		"sub": "auth0|erin",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	claims, err := chain.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "auth0|erin", claims.Subject)

	_, err = chain.Validate(context.Background(), makeToken("nope", jwt.MapClaims{"sub": "x"}))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = ChainValidator{}.Validate(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

package jwt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/jhoicas/Kardex-api/pkg/jwt"
)

var opts = pkgjwt.Options{Secret: "test-secret", Issuer: "kardex-api-test", ExpMinutes: 60}

func TestGenerateAndParse(t *testing.T) {
	tok, err := pkgjwt.Generate(opts, "u1", "c1", "bodeguero")
	require.NoError(t, err)

	claims, err := pkgjwt.Parse(opts.Secret, opts.Issuer, tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "c1", claims.CompanyID)
	assert.Equal(t, "bodeguero", claims.Role)
}

func TestParse_Errores(t *testing.T) {
	tok, err := pkgjwt.Generate(opts, "u1", "c1", "admin")
	require.NoError(t, err)

	_, err = pkgjwt.Parse("otro-secret", opts.Issuer, tok)
	assert.Error(t, err, "secret incorrecto")

	_, err = pkgjwt.Parse(opts.Secret, "otro-emisor", tok)
	assert.Error(t, err, "emisor distinto")

	expired, err := pkgjwt.Generate(pkgjwt.Options{Secret: opts.Secret, Issuer: opts.Issuer, ExpMinutes: -1}, "u1", "c1", "admin")
	require.NoError(t, err)
	_, err = pkgjwt.Parse(opts.Secret, opts.Issuer, expired)
	assert.Error(t, err, "token expirado")

	_, err = pkgjwt.Generate(pkgjwt.Options{}, "u1", "c1", "admin")
	assert.Error(t, err, "secret vacío")
}

func TestParse_SinRol(t *testing.T) {
	tok, err := pkgjwt.Generate(opts, "u1", "c1", "")
	require.NoError(t, err)

	claims, err := pkgjwt.Parse(opts.Secret, opts.Issuer, tok)
	assert.ErrorIs(t, err, pkgjwt.ErrMissingRole)
	require.NotNil(t, claims)
	assert.Equal(t, "u1", claims.UserID)
}

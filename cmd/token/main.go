// token emite un JWT firmado con la configuración de la API para pruebas locales.
//
// Uso: go run ./cmd/token -user u1 -company c1 -role bodeguero
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/pkg/config"
	pkgjwt "github.com/jhoicas/Kardex-api/pkg/jwt"
)

func main() {
	user := flag.String("user", "", "ID del usuario (sub)")
	company := flag.String("company", "", "ID de la empresa")
	role := flag.String("role", entity.RoleAdmin, "admin | bodeguero | vendedor")
	flag.Parse()

	if *user == "" || *company == "" {
		fmt.Fprintln(os.Stderr, "-user y -company son obligatorios")
		os.Exit(2)
	}
	switch *role {
	case entity.RoleAdmin, entity.RoleBodeguero, entity.RoleVendedor:
	default:
		fmt.Fprintf(os.Stderr, "rol desconocido %q\n", *role)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET no está definido")
		os.Exit(1)
	}

	token, err := pkgjwt.Generate(pkgjwt.Options{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		ExpMinutes: cfg.JWT.Expiration,
	}, *user, *company, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Firmar token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

package entity

// Roles aceptados en el token JWT.
const (
	RoleAdmin     = "admin"
	RoleBodeguero = "bodeguero"
	RoleVendedor  = "vendedor"
)

// ActorContext identifica explícitamente quién origina un movimiento.
// Se propaga como parámetro hasta el kardex y la bitácora de auditoría.
type ActorContext struct {
	UserID    string
	CompanyID string
	Role      string
	RequestID string
	Source    string // http, job, pos, ...
}

// SystemActor se usa para procesos internos sin usuario (migraciones, jobs).
func SystemActor(source string) ActorContext {
	return ActorContext{UserID: "system", Role: RoleAdmin, Source: source}
}

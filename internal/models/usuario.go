package models

// Usuario keeps the modern physical column names (id_usuario, nombre, correo,
// contrasena). Older deployments used other names; internal/database resolves
// those at startup and the auth fallback queries through the resolved mapping.
type Usuario struct {
	ID         int    `json:"id" gorm:"column:id_usuario;primaryKey;autoIncrement"`
	Nombre     string `json:"nombre_completo" gorm:"column:nombre;type:varchar(150);not null"`
	Correo     string `json:"correo" gorm:"column:correo;type:varchar(255);uniqueIndex;not null"`
	Contrasena string `json:"-" gorm:"column:contrasena;type:text;not null"`
}

func (Usuario) TableName() string {
	return "usuarios"
}

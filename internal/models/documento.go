package models

type Documento struct {
	ID          int    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Titulo      string `json:"titulo" gorm:"column:titulo;type:varchar(255);not null"`
	Descripcion string `json:"descripcion" gorm:"column:descripcion;type:text"`
	URL         string `json:"url" gorm:"column:url;type:text;not null"`
	Tipo        string `json:"tipo" gorm:"column:tipo;type:varchar(50);not null;index"`
}

func (Documento) TableName() string {
	return "documentos"
}

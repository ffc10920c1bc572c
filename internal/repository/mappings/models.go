package mappings

import "time"

type clientModel struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name"`
	IsActive  bool      `gorm:"column:is_active"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (clientModel) TableName() string { return "clients" }

type tableMappingModel struct {
	ID              int64     `gorm:"column:id;primaryKey"`
	ClientID        int64     `gorm:"column:client_id;index"`
	PhysicalTable   string    `gorm:"column:table_name"`
	CustomTableName *string   `gorm:"column:custom_table_name"`
	IsActive        bool      `gorm:"column:is_active"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (tableMappingModel) TableName() string { return "table_mappings" }

// descriptorRow is the projection ListActive scans into.
type descriptorRow struct {
	TableName       string  `gorm:"column:table_name"`
	CustomTableName *string `gorm:"column:custom_table_name"`
}

func (r descriptorRow) descriptor() TableDescriptor {
	return TableDescriptor{TableName: r.TableName, CustomTableName: r.CustomTableName}
}

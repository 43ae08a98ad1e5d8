package models

// Student is a read-only view over the roster subsystem's students table. The
// attendance service only ever resolves an upstream identity (max_id) to the
// record-book number recorded in attendance rosters.
type Student struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	MaxID      string `gorm:"column:max_id;size:64;uniqueIndex" json:"max_id"`
	ZachNumber string `gorm:"column:zach_number;size:32;index" json:"zach_number"`
	FullName   string `gorm:"size:255" json:"full_name"`
	GroupName  string `gorm:"size:64;index" json:"group_name"`
}

// TableName pins the table shared with the roster CRUD subsystem.
func (Student) TableName() string {
	return "students"
}

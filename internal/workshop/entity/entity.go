package entity

import "gorm.io/gorm"

// AutoMigrate 自动迁移所有维修车间表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 基础数据
		&Customer{},
		&Vehicle{},
		&Employee{},
		&Product{},
		&Service{},

		// 服务工单
		&Appointment{},
		&AppointmentExtraService{},
		&AppointmentComment{},
		&AppointmentPart{},
		&AppointmentAttachment{},
	)
}

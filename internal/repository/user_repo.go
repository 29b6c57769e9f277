package repository

import (
	"heliactyl/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(u *models.User) error {
	return r.db.Create(u).Error
}

func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var u models.User
	err := r.db.First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	err := r.db.Where("email = ?", email).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AddExtraResources grows the user's purchased resource package.
func (r *UserRepository) AddExtraResources(id uint, ram, disk, cpu, servers int64) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"extra_ram":     gorm.Expr("extra_ram + ?", ram),
		"extra_disk":    gorm.Expr("extra_disk + ?", disk),
		"extra_cpu":     gorm.Expr("extra_cpu + ?", cpu),
		"extra_servers": gorm.Expr("extra_servers + ?", servers),
	}).Error
}

package repository

import (
	"context"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"

	"gorm.io/gorm"
)

type SlotRepository struct {
	db *gorm.DB
}

func NewSlotRepository(db *gorm.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

type slotModel struct {
	ID          int64     `gorm:"column:id;primaryKey"`
	Date        string    `gorm:"column:slot_date;size:10;not null;uniqueIndex:idx_slot_date_start"`
	StartTime   string    `gorm:"column:start_time;size:5;not null;uniqueIndex:idx_slot_date_start"`
	EndTime     string    `gorm:"column:end_time;size:5;not null"`
	Price       float64   `gorm:"column:price;not null"`
	Capacity    int       `gorm:"column:capacity;not null;default:1"`
	IsAvailable bool      `gorm:"column:is_available;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (slotModel) TableName() string { return "time_slots" }

func toDomainSlot(m slotModel) *domain.Slot {
	return &domain.Slot{
		ID:          m.ID,
		Date:        m.Date,
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		Price:       m.Price,
		Capacity:    m.Capacity,
		IsAvailable: m.IsAvailable,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toSlotModel(s *domain.Slot) slotModel {
	return slotModel{
		ID:          s.ID,
		Date:        s.Date,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		Price:       s.Price,
		Capacity:    s.Capacity,
		IsAvailable: s.IsAvailable,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

type slotAvailabilityRow struct {
	slotModel
	ActiveBookings int `gorm:"column:active_bookings"`
}

func (r *SlotRepository) Create(ctx context.Context, s *domain.Slot) error {
	m := toSlotModel(s)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate(err)
	}
	*s = *toDomainSlot(m)
	return nil
}

func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*domain.Slot, error) {
	var m slotModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err)
	}
	return toDomainSlot(m), nil
}

// ListAvailable returns the day's bookable slots whose active booking count is
// strictly below capacity, ordered by start time.
func (r *SlotRepository) ListAvailable(ctx context.Context, date string) ([]domain.SlotAvailability, error) {
	db := r.db.WithContext(ctx)
	active := db.Model(&bookingModel{}).
		Select("slot_id, COUNT(*) AS active").
		Where("status IN ?", activeStatusStrings()).
		Group("slot_id")

	var rows []slotAvailabilityRow
	err := db.Table("time_slots AS s").
		Select("s.*, COALESCE(b.active, 0) AS active_bookings").
		Joins("LEFT JOIN (?) AS b ON b.slot_id = s.id", active).
		Where("s.slot_date = ? AND s.is_available = ?", date, true).
		Where("COALESCE(b.active, 0) < s.capacity").
		Order("s.start_time ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.SlotAvailability, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.SlotAvailability{
			Slot:           *toDomainSlot(row.slotModel),
			ActiveBookings: row.ActiveBookings,
		})
	}
	return out, nil
}

func (r *SlotRepository) SetAvailability(ctx context.Context, id int64, available bool) (*domain.Slot, error) {
	var out *domain.Slot
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&slotModel{}).Where("id = ?", id).Update("is_available", available)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		var m slotModel
		if err := tx.First(&m, id).Error; err != nil {
			return err
		}
		out = toDomainSlot(m)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// CreateMissing inserts the slots whose (date, start time) pair is not
// present yet and returns how many rows were written.
func (r *SlotRepository) CreateMissing(ctx context.Context, slots []domain.Slot) (int, error) {
	created := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range slots {
			var count int64
			if err := tx.Model(&slotModel{}).
				Where("slot_date = ? AND start_time = ?", slots[i].Date, slots[i].StartTime).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			m := toSlotModel(&slots[i])
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
			slots[i].ID = m.ID
			created++
		}
		return nil
	})
	return created, translate(err)
}

func activeStatusStrings() []string {
	out := make([]string, 0, len(domain.ActiveBookingStatuses))
	for _, s := range domain.ActiveBookingStatuses {
		out = append(out, string(s))
	}
	return out
}

package credits

import (
	"github.com/cineo-ai/cineo-api/internal/apperr"
	"github.com/cineo-ai/cineo-api/internal/platform"
	"github.com/cineo-ai/cineo-api/models"
	"gorm.io/gorm"
)

// Fixed costs in credits.
const (
	CreationCost      int64 = 40
	AssemblySurcharge int64 = 50
)

// Ledger validates and debits user credit balances. All debits run inside
// the caller's transaction under a row lock so concurrent finalize attempts
// cannot produce a lost update.
type Ledger struct {
	DB *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{DB: db}
}

// Balance returns the user's current credit balance.
func (l *Ledger) Balance(userID uint) (int64, error) {
	var user models.User
	if err := l.DB.First(&user, userID).Error; err != nil {
		return 0, apperr.Persistencef(err, "loading user %d", userID)
	}
	return user.Credits, nil
}

// CheckCreation rejects movie creation when the balance is below the
// creation cost. Rejection has no side effects.
func (l *Ledger) CheckCreation(userID uint) error {
	balance, err := l.Balance(userID)
	if err != nil {
		return err
	}
	if balance < CreationCost {
		return apperr.Validationf("insufficient credits: have %d, need %d", balance, CreationCost)
	}
	return nil
}

// FinalizeTotal computes the debit for finalizing a movie: the cost of every
// completed scene plus the assembly surcharge.
func FinalizeTotal(scenes []models.Scene) int64 {
	total := AssemblySurcharge
	for _, s := range scenes {
		if s.Status == models.SceneStatusCompleted {
			total += s.CreditsUsed
		}
	}
	return total
}

// CheckFinalize rejects finalization when the projected balance would go
// negative. Assembly must not start after a rejection.
func (l *Ledger) CheckFinalize(userID uint, total int64) error {
	balance, err := l.Balance(userID)
	if err != nil {
		return err
	}
	if balance-total < 0 {
		return apperr.Validationf("insufficient credits: have %d, finalize costs %d", balance, total)
	}
	return nil
}

// Debit subtracts amount from the user's balance inside tx, re-checking
// under the row lock. The caller is responsible for making the debit happen
// at most once per movie.
func (l *Ledger) Debit(tx *gorm.DB, userID uint, amount int64) error {
	var user models.User
	if err := platform.LockForUpdate(tx).First(&user, userID).Error; err != nil {
		return apperr.Persistencef(err, "locking user %d", userID)
	}
	if user.Credits-amount < 0 {
		return apperr.Validationf("insufficient credits: have %d, need %d", user.Credits, amount)
	}
	if err := tx.Model(&user).Update("credits", gorm.Expr("credits - ?", amount)).Error; err != nil {
		return apperr.Persistencef(err, "debiting user %d", userID)
	}
	return nil
}

// Credit adds amount to the user's balance. Used by credit pack purchases.
func (l *Ledger) Credit(userID uint, amount int64) error {
	result := l.DB.Model(&models.User{}).Where("id = ?", userID).
		Update("credits", gorm.Expr("credits + ?", amount))
	if result.Error != nil {
		return apperr.Persistencef(result.Error, "crediting user %d", userID)
	}
	if result.RowsAffected == 0 {
		return apperr.Validationf("user %d not found", userID)
	}
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mutation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

// Notice is the user-facing report of a failed write.
type Notice struct {
	ID     string
	ItemID string
	Fields []model.Field
	Err    error
	At     time.Time

	// Restored is false when every failed field already has a newer local
	// edit queued, so nothing was put back.
	Restored bool
}

func newNotice(itemID string, fields []model.Field, restored bool, err error) *Notice {
	return &Notice{
		ID:       uuid.NewString(),
		ItemID:   itemID,
		Fields:   fields,
		Err:      err,
		At:       time.Now(),
		Restored: restored,
	}
}

// Message returns the text shown to the user.
func (n *Notice) Message() string {
	what := "changes"
	if len(n.Fields) > 0 {
		what = strings.Join(fieldNames(n.Fields), " and ")
	}
	outcome := "the previous value was restored"
	if !n.Restored {
		outcome = "your newer change is being saved"
	}
	msg := fmt.Sprintf("Could not save %s for %s; %s.", what, n.ItemID, outcome)
	if n.Err != nil {
		msg += " (" + n.Err.Error() + ")"
	}
	return msg
}

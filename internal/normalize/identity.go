package normalize

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// idSeparator joins the identity fields before hashing.
const idSeparator = "|"

// BattleID derives the durable primary key of a battle record: the hex MD5 of
// reporting player tag, ISO battle time, mode and opponent tag. Missing
// fields hash as empty strings. The reporting tag is part of the key, so the
// same match pulled from both participants' logs yields two records.
func BattleID(playerTag, battleTimeISO, mode, opponentTag string) string {
	base := strings.Join([]string{playerTag, battleTimeISO, mode, opponentTag}, idSeparator)
	sum := md5.Sum([]byte(base))
	return hex.EncodeToString(sum[:])
}

// ISOTime renders t the way battle ids have always been computed:
// "2006-01-02T15:04:05+00:00", with a 6-digit fraction only when non-zero.
// A nil time renders as "".
func ISOTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	u := t.UTC().Truncate(time.Microsecond)
	if u.Nanosecond() == 0 {
		return u.Format("2006-01-02T15:04:05") + "+00:00"
	}
	return u.Format("2006-01-02T15:04:05.000000") + "+00:00"
}

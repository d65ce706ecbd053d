package snow

import "errors"

var (
	// ErrInvalidSysID rejects write targets that cannot be real sys_ids.
	ErrInvalidSysID = errors.New("snow: sys_id must be at least 10 characters")
	// ErrCredentials covers 401/403 from the instance.
	ErrCredentials = errors.New("snow: instance rejected credentials")
	// ErrTableMissing covers 404 on a table read, usually a plugin or ACL gap.
	ErrTableMissing = errors.New("snow: table not found")
)

package model

// Tables 需要迁移的全部表（按依赖顺序）
func Tables() []interface{} {
	return []interface{}{
		&Tournament{},
		&Player{},
		&PlayerAlias{},
		&Entry{},
		&PendingEntry{},
		&SyncRun{},
	}
}

package hooks

// Known extension points. Plugins may also use custom event names as long
// as their manifest grants them.
const (
	EventPageRender     = "page_render"
	EventPageSaveBefore = "page_save_before"
	EventPageSaveAfter  = "page_save_after"
	EventPageDelete     = "page_delete"
	EventBlockRender    = "block_render"
	EventMenuRender     = "menu_render"
	EventUploadBefore   = "upload_before"
	EventUploadAfter    = "upload_after"
	EventAuthSuccess    = "auth_success"
	EventAuthFailed     = "auth_failed"
	EventSettingsSave   = "settings_save"
	EventThemeChange    = "theme_change"
	EventPluginEnable   = "plugin_enable"
	EventPluginDisable  = "plugin_disable"
	EventBackupBefore   = "backup_before"
	EventBackupAfter    = "backup_after"
	EventRestoreBefore  = "restore_before"
	EventRestoreAfter   = "restore_after"
)

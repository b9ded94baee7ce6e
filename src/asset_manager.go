package main

import "log"

// mqttAssetManager forwards asset work to the asset service over the bus.
// Each request is fire and forget; the service reports progress through the
// ephemeral store. UpdateHoliday runs on the control cycle so it never waits
// for queue space.
type mqttAssetManager struct {
	sender *MQTTSender
}

func newMQTTAssetManager(sender *MQTTSender) *mqttAssetManager {
	return &mqttAssetManager{sender: sender}
}

func (a *mqttAssetManager) request(name string, args any) {
	a.send(name, args, true)
}

func (a *mqttAssetManager) send(name string, args any, wait bool) {
	if err := a.sender.RequestAsset(name, args, wait); err != nil {
		log.Printf("Failed to request %s: %v\n", name, err)
	}
}

func (a *mqttAssetManager) DownloadAllModels() {
	a.request("download_all_models", nil)
}

func (a *mqttAssetManager) DownloadModel(model string) {
	a.request("download_model", map[string]string{"model": model})
}

func (a *mqttAssetManager) UpdateModels(boot bool) {
	a.request("update_models", map[string]bool{"boot": boot})
}

func (a *mqttAssetManager) UpdateActiveTheme() {
	a.request("update_active_theme", nil)
}

func (a *mqttAssetManager) DownloadTheme(kind, name string) {
	a.request("download_theme", map[string]string{"kind": kind, "name": name})
}

func (a *mqttAssetManager) UpdateThemes(boot bool) {
	a.request("update_themes", map[string]bool{"boot": boot})
}

func (a *mqttAssetManager) UpdateHoliday() {
	a.send("update_holiday", nil, false)
}

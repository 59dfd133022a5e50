// Package mqtt provides the MQTT client used to mirror session status to
// remote displays and to accept operator actions from the network.
//
// # Topics
//
//	surprise/status/{field}   retained, one per status field (state, status, locked)
//	surprise/status/timer     timer line, not retained
//	surprise/command/action   inbound, payload is an action name
//	surprise/system/status    online/offline, retained, doubles as the LWT
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.SubscribeActions(func(action string) error {
//	    a, err := session.ParseAction(action)
//	    if err != nil {
//	        return err
//	    }
//	    controller.Dispatch(a)
//	    return nil
//	})
package mqtt

package converters

// builtinModels returns the device definitions shipped with the gateway.
// Each call returns fresh values so callers may modify them.
func builtinModels() []Model {
	return []Model{
		{
			ZigbeeModel: []string{"TRADFRI bulb E27 WS opal 980lm", "TRADFRI bulb E26 WS opal 980lm"},
			Model:       "LED1545G12",
			Vendor:      "IKEA",
			Description: "TRADFRI LED bulb E26/E27 980 lumen, dimmable, white spectrum, opal white",
			ToZigbee:    []Converter{OnOff, Brightness, ColorTemp, Transition},
		},
		{
			ZigbeeModel: []string{"TRADFRI bulb E14 W op/ch 400lm", "TRADFRI bulb E12 W op/ch 400lm"},
			Model:       "LED1649C5",
			Vendor:      "IKEA",
			Description: "TRADFRI LED bulb E12/E14 400 lumen, dimmable warm white, chandelier opal",
			ToZigbee:    []Converter{OnOff, Brightness, Transition},
		},
		{
			ZigbeeModel: []string{"LWB010"},
			Model:       "8718696449691",
			Vendor:      "Philips",
			Description: "Hue White Single bulb B22",
			ToZigbee:    []Converter{OnOff, Brightness, Transition},
		},
		{
			ZigbeeModel: []string{"LCT015"},
			Model:       "9290012573A",
			Vendor:      "Philips",
			Description: "Hue white and color ambiance E26/E27",
			ToZigbee:    []Converter{OnOff, Brightness, ColorTemp, ColorXY, Transition},
		},
		{
			ZigbeeModel: []string{"lumi.plug"},
			Model:       "ZNCZ02LM",
			Vendor:      "Xiaomi",
			Description: "Mi power plug ZigBee",
			ToZigbee:    []Converter{OnOff},
		},
		{
			ZigbeeModel: []string{"lumi.ctrl_neutral1"},
			Model:       "QBKG04LM",
			Vendor:      "Xiaomi",
			Description: "Aqara single key wired wall switch",
			Endpoints:   map[string]uint8{"default": 2},
			ToZigbee:    []Converter{OnOff},
		},
		{
			ZigbeeModel: []string{"lumi.ctrl_neutral2"},
			Model:       "QBKG03LM",
			Vendor:      "Xiaomi",
			Description: "Aqara double key wired wall switch",
			Endpoints:   map[string]uint8{"left": 2, "right": 3},
			ToZigbee:    []Converter{OnOff},
		},
		{
			ZigbeeModel: []string{"lumi.switch.n3acn3"},
			Model:       "QBKG26LM",
			Vendor:      "Xiaomi",
			Description: "Aqara D1 3 gang smart wall switch (with neutral wire)",
			Endpoints:   map[string]uint8{"left": 1, "center": 2, "right": 3},
			ToZigbee:    []Converter{OnOff},
		},
	}
}

package sensor

// SmartSens SC202CS, 1-lane MIPI, 1280x720 RAW8 mode
var sc202cs = model{
	name:    "sc202cs",
	pid:     0xEB52,
	addr:    0x36,
	idHi:    0x3107,
	idLo:    0x3108,
	width:   1280,
	height:  720,
	lanes:   1,
	bitrate: 576,
	bayer:   BayerBGGR,
	init: []regVal{
		{0x0103, 0x01}, // soft reset
		{0x0100, 0x00}, // standby
		{0x36e9, 0x80},
		{0x36ea, 0x06},
		{0x36eb, 0x0a},
		{0x36ec, 0x01},
		{0x36ed, 0x18},
		{0x36e9, 0x24},
		{0x301f, 0x18},
		{0x3031, 0x08}, // RAW8
		{0x3037, 0x00},
		{0x3200, 0x00},
		{0x3208, 0x05}, // output width 1280
		{0x3209, 0x00},
		{0x320a, 0x02}, // output height 720
		{0x320b, 0xd0},
		{0x3301, 0xff},
		{0x3304, 0x68},
		{0x3306, 0x40},
		{0x3308, 0x08},
		{0x3309, 0xa8},
		{0x330b, 0xd0},
		{0x330c, 0x18},
		{0x330d, 0x10},
		{0x3e01, 0x45},
		{0x3e02, 0xb0},
	},
	streamOn: []regVal{{0x0100, 0x01}},
	streamOf: []regVal{{0x0100, 0x00}},
	brightness: func(level int) []regVal {
		// exposure lines scale linearly from 0x100 to 0x600
		lines := 0x100 + level*0x80
		return []regVal{
			{0x3e00, 0x00},
			{0x3e01, uint8(lines >> 4)},
			{0x3e02, uint8(lines<<4) & 0xF0},
		}
	},
}

func newSC202CS(opts Options) (Driver, error) {
	return newHardware(sc202cs, opts)
}

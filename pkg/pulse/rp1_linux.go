//go:build linux && !tinygo

package pulse

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/compute-blade-community/pixelwire/pkg/hal"
)

const (
	// RP1 southbridge is connected via PCIe on BCM2712.
	// The BAR base address is fixed by firmware at 0x1f00000000.
	rp1BarBase  int64 = 0x1f00000000
	rp1GpioBase int64 = rp1BarBase + 0xd0000
	rp1Pwm0Base int64 = rp1BarBase + 0x98000
	rp1PageSize       = 4096

	// RP1 PWM input clock is 50 MHz (from device tree assigned-clock-rates)
	rp1PwmClockHz = 50_000_000

	// RP1 GPIO register layout: each GPIO has 8 bytes (STATUS + CTRL)
	rp1GpioCtrlOffset  = 0x04
	rp1GpioRegSize     = 0x08
	rp1GpioFuncselMask = 0x1f

	// GPIO 18: funcsel 3 (a3) = PWM0_CHAN2
	rp1Gpio18FuncselPwm = 3
	rp1GpioFuncselNull  = 0x1f

	rp1PwmGlobalCtrl = 0x00
	rp1PwmFifoCtrl   = 0x04
	rp1PwmFifoPush   = 0x08
	rp1PwmFifoLevel  = 0x0c

	// From kernel pwm-rp1.c: CTRL(x)=0x14+x*16, RANGE(x)=0x18+x*16
	rp1PwmChanCtrlOff  = 0x00
	rp1PwmChanRangeOff = 0x04
	rp1PwmChanPhaseOff = 0x08
	rp1PwmChanSize     = 0x10
	rp1PwmChanBase     = 0x14

	rp1PwmGlobalChanEnBit = 0
	rp1PwmGlobalSetUpdate = 31

	rp1PwmChanCtrlModeBit    = 0
	rp1PwmChanCtrlUseFifoBit = 4
	rp1PwmModeSerializer     = 3
	rp1PwmFifoFlushBit       = 5

	// The serializer shifts out one 32 bit word per RANGE ticks, MSB first.
	rp1SerializerChan  = 2
	rp1SerializerPin   = 18
	rp1SerializerRange = 32

	// >50us of low ahead of the frame. At 640ns/word, 80 words = 51.2us.
	rp1ResetWords = 80
	// Conservative FIFO depth assumption
	rp1FifoMax uint32 = 8
	// Slack on top of the frame duration before the feeder gives up
	rp1FeedSlack = 5 * time.Millisecond
	rp1WordTime  = rp1SerializerRange * time.Second / rp1PwmClockHz
)

func pwmChanRegIdx(channel, regOffset int) int {
	return (rp1PwmChanBase + channel*rp1PwmChanSize + regOffset) / 4
}

// RP1Peripheral drives WS281x chains through the PWM0 serializer of the RP1 southbridge (BCM2712).
// It exposes one channel, PWM0 channel 2 on GPIO 18.
type RP1Peripheral struct {
	wrMutex sync.Mutex

	mem     *hal.DevMem
	gpioMem []uint32
	pwmMem  []uint32

	done chan error
	// stop makes a running feed give up, so Release does not wait for the feed deadline.
	stop atomic.Bool
}

// OpenRP1Peripheral maps the RP1 GPIO and PWM0 register blocks from /dev/mem.
func OpenRP1Peripheral() (*RP1Peripheral, error) {
	mem, err := hal.OpenDevMem()
	if err != nil {
		return nil, err
	}

	gpioMem, err := mem.Map(rp1GpioBase, rp1PageSize)
	if err != nil {
		mem.Close()
		return nil, fmt.Errorf("failed to map RP1 GPIO: %w", err)
	}

	pwmMem, err := mem.Map(rp1Pwm0Base, rp1PageSize)
	if err != nil {
		mem.Close()
		return nil, fmt.Errorf("failed to map RP1 PWM0: %w", err)
	}

	return &RP1Peripheral{mem: mem, gpioMem: gpioMem, pwmMem: pwmMem}, nil
}

func (rp *RP1Peripheral) Close() error {
	return rp.mem.Close()
}

func (rp *RP1Peripheral) Channels() int { return 1 }

func (rp *RP1Peripheral) Configure(ch, pin int) (uint64, error) {
	if ch != 0 {
		return 0, fmt.Errorf("invalid channel %d, supported: [0]", ch)
	}
	if pin != rp1SerializerPin {
		return 0, fmt.Errorf("pin %d cannot be routed to PWM0 channel %d, use GPIO %d", pin, rp1SerializerChan, rp1SerializerPin)
	}
	return rp1PwmClockHz, nil
}

// setGpioFuncsel sets the function select for a GPIO pin via direct register write.
func (rp *RP1Peripheral) setGpioFuncsel(gpio int, funcsel uint32) {
	ctrlIdx := (gpio*rp1GpioRegSize + rp1GpioCtrlOffset) / 4
	ctrl := rp.gpioMem[ctrlIdx]
	ctrl = (ctrl &^ uint32(rp1GpioFuncselMask)) | (funcsel & uint32(rp1GpioFuncselMask))
	rp.gpioMem[ctrlIdx] = ctrl
}

func (rp *RP1Peripheral) Write(ch int, src []byte, translate TranslateFunc) error {
	if ch != 0 {
		return fmt.Errorf("invalid channel %d, supported: [0]", ch)
	}

	words, err := serialize(src, translate)
	if err != nil {
		return err
	}

	rp.stop.Store(false)
	rp.done = make(chan error, 1)
	go func(done chan<- error) {
		done <- rp.feed(words)
	}(rp.done)

	return nil
}

func (rp *RP1Peripheral) Wait(ch int, timeout time.Duration) error {
	if rp.done == nil {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-rp.done:
		rp.done = nil
		return err
	case <-timer.C:
		return ErrTimeout
	}
}

// Release stops a feed that is still running, then disconnects the pin.
func (rp *RP1Peripheral) Release(ch int) {
	rp.stop.Store(true)

	rp.wrMutex.Lock()
	defer rp.wrMutex.Unlock()

	// Disconnect GPIO 18 from PWM to prevent residual noise on the data line
	rp.setGpioFuncsel(rp1SerializerPin, rp1GpioFuncselNull)
}

// feed pushes the word stream through the serializer FIFO.
func (rp *RP1Peripheral) feed(data []uint32) error {
	rp.wrMutex.Lock()
	defer rp.wrMutex.Unlock()

	ch := rp1SerializerChan

	rp.setGpioFuncsel(rp1SerializerPin, rp1Gpio18FuncselPwm)
	time.Sleep(10 * time.Microsecond)

	// Disable channel
	globalCtrl := rp.pwmMem[rp1PwmGlobalCtrl/4]
	globalCtrl &^= (1 << (rp1PwmGlobalChanEnBit + ch))
	rp.pwmMem[rp1PwmGlobalCtrl/4] = globalCtrl
	time.Sleep(10 * time.Microsecond)

	// Serializer mode, use FIFO, low when idle
	rp.pwmMem[pwmChanRegIdx(ch, rp1PwmChanCtrlOff)] =
		(rp1PwmModeSerializer << rp1PwmChanCtrlModeBit) | (1 << rp1PwmChanCtrlUseFifoBit)
	rp.pwmMem[pwmChanRegIdx(ch, rp1PwmChanRangeOff)] = rp1SerializerRange
	rp.pwmMem[pwmChanRegIdx(ch, rp1PwmChanPhaseOff)] = 0
	time.Sleep(10 * time.Microsecond)

	rp.pwmMem[rp1PwmFifoCtrl/4] = (1 << rp1PwmFifoFlushBit)
	time.Sleep(10 * time.Microsecond)

	globalCtrl = rp.pwmMem[rp1PwmGlobalCtrl/4]
	globalCtrl |= (1 << rp1PwmGlobalSetUpdate)
	rp.pwmMem[rp1PwmGlobalCtrl/4] = globalCtrl
	time.Sleep(10 * time.Microsecond)

	// Pre-fill FIFO before enabling channel
	idx := 0
	for idx < len(data) && uint32(idx) < rp1FifoMax {
		rp.pwmMem[rp1PwmFifoPush/4] = data[idx]
		idx++
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	globalCtrl = rp.pwmMem[rp1PwmGlobalCtrl/4]
	globalCtrl |= (1 << (rp1PwmGlobalChanEnBit + ch))
	rp.pwmMem[rp1PwmGlobalCtrl/4] = globalCtrl

	fifoLevelReg := rp1PwmFifoLevel / 4
	fifoPushReg := rp1PwmFifoPush / 4
	deadline := time.Now().Add(time.Duration(len(data))*rp1WordTime + rp1FeedSlack)

	var err error
	for idx < len(data) {
		if rp.stop.Load() || time.Now().After(deadline) {
			err = ErrTimeout
			break
		}
		if rp.pwmMem[fifoLevelReg] < rp1FifoMax {
			rp.pwmMem[fifoPushReg] = data[idx]
			idx++
		}
	}

	for err == nil && rp.pwmMem[fifoLevelReg] > 0 {
		if rp.stop.Load() || time.Now().After(deadline) {
			err = ErrTimeout
		}
	}

	// Wait for last word to finish shifting out
	time.Sleep(200 * time.Microsecond)

	globalCtrl = rp.pwmMem[rp1PwmGlobalCtrl/4]
	globalCtrl &^= (1 << (rp1PwmGlobalChanEnBit + ch))
	rp.pwmMem[rp1PwmGlobalCtrl/4] = globalCtrl

	return err
}

// serialize pulls every item of src through translate and packs them into serializer words,
// framed by reset padding and two trailing zero words.
func serialize(src []byte, translate TranslateFunc) ([]uint32, error) {
	packer := wordPacker{words: make([]uint32, rp1ResetWords, rp1ResetWords+len(src)*16+2)}
	buf := make([]Item, 64)

	for pos := 0; pos < len(src); {
		consumed, produced := translate(src[pos:], buf)
		if consumed == 0 && produced == 0 {
			return nil, fmt.Errorf("translator made no progress at byte %d", pos)
		}
		for _, it := range buf[:produced] {
			if it.IsZero() {
				continue
			}
			packer.put(it.Level0, it.Duration0)
			packer.put(it.Level1, it.Duration1)
		}
		pos += consumed
	}

	packer.flush()
	return append(packer.words, 0, 0), nil
}

package qglib

import (
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Value vtables", Label("vtable"), func() {
	var e *engine

	BeforeEach(func() {
		e, _ = createTestEngine()
	})

	It("has a vtable for every instantiable fundamental", func() {
		for k := KindBool; k < kindCount; k++ {
			Expect(e.LookupValueVTable(e.FundamentalType(k)).IsNull()).To(BeFalse(), "kind %s", k)
		}
		Expect(e.LookupValueVTable(Type{}).IsNull()).To(BeTrue())
	})

	It("falls back on the vtable of the closest ancestor", func() {
		celsius, err := e.RegisterType("Celsius", e.FundamentalType(KindDouble))
		Expect(err).To(BeNil())
		Expect(e.LookupValueVTable(celsius).IsNull()).To(BeFalse())

		v := e.NewValue(celsius)
		Expect(Set(v, 12.5)).To(Succeed())
		Expect(Get[float64](v)).To(Equal(12.5))
	})

	It("uses the vtable registered for a derived type", func() {
		celsius, err := e.RegisterType("Celsius", e.FundamentalType(KindDouble))
		Expect(err).To(BeNil())
		Expect(e.RegisterGoType(reflect.TypeOf(Celsius(0)), celsius)).To(Succeed())

		sets := 0
		e.RegisterValueVTable(celsius, ValueVTable{
			Set: func(v *Value, in reflect.Value) error {
				sets++
				f := in.Float()
				if f < -273.15 {
					return errors.Errorf("%f is below absolute zero", f)
				}
				v.data = math.Round(f*10) / 10
				return nil
			},
			Get: func(v *Value, out reflect.Value) error {
				out.SetFloat(v.data.(float64))
				return nil
			},
		})

		v := e.NewValue(celsius)
		Expect(Set(v, Celsius(21.34))).To(Succeed())
		Expect(Get[Celsius](v)).To(Equal(Celsius(21.3)))
		Expect(sets).To(Equal(1))

		Expect(Set(v, Celsius(-300))).To(MatchError(ContainSubstring("below absolute zero")))
	})

	It("ignores registrations for invalid types", func() {
		e2, logs := createTestEngine()
		e2.RegisterValueVTable(Type{}, ValueVTable{})
		Expect(logs.String()).To(ContainSubstring("could not register value vtable"))
	})

	It("can be registered and looked up concurrently", func() {
		const workers = 8

		types := make([]Type, workers)
		for i := range types {
			t, err := e.RegisterType(fmt.Sprintf("Number%d", i), e.FundamentalType(KindInt64))
			Expect(err).To(BeNil())
			types[i] = t
		}

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(t Type) {
				defer GinkgoRecover()
				defer wg.Done()

				for j := 0; j < 100; j++ {
					e.RegisterValueVTable(t, integerVTable)
					v := e.NewValue(t)
					Expect(Set(v, int64(j))).To(Succeed())
					Expect(Get[int64](v)).To(Equal(int64(j)))
				}
			}(types[i])
		}
		wg.Wait()
	})
})

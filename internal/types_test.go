package qglib

import (
	"fmt"
	"reflect"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type Celsius float64

var _ = Describe("Types", Label("types"), func() {
	var e *engine
	var logs *logBuffer

	BeforeEach(func() {
		e, logs = createTestEngine()
	})

	It("has the fundamental types registered", func() {
		Expect(e.FundamentalType(KindInt).Name()).To(Equal("gint"))
		Expect(e.FundamentalType(KindObject).Name()).To(Equal("GObject"))
		Expect(e.TypeFromName("gchararray")).To(Equal(e.FundamentalType(KindString)))
		Expect(e.TypeFromName("nope").IsValid()).To(BeFalse())
		Expect(e.FundamentalType(KindInvalid).IsValid()).To(BeFalse())
		Expect(KindDouble.String()).To(Equal("gdouble"))
	})

	It("marks the enum, flags and boxed fundamentals abstract", func() {
		for _, kind := range []Kind{KindEnum, KindFlags, KindBoxed} {
			t := e.FundamentalType(kind)
			Expect(t.IsAbstract()).To(BeTrue(), "kind %s", kind)
			Expect(t.IsValueType()).To(BeFalse(), "kind %s", kind)
		}

		v := e.NewValue(e.FundamentalType(KindEnum))
		Expect(v.IsValid()).To(BeFalse())
		Expect(logs.String()).To(ContainSubstring("can not hold values"))
	})

	Context("derived types", func() {
		var celsius Type

		BeforeEach(func() {
			var err error
			celsius, err = e.RegisterType("Celsius", e.FundamentalType(KindDouble))
			Expect(err).To(BeNil())
		})

		It("knows its place in the hierarchy", func() {
			double := e.FundamentalType(KindDouble)
			Expect(celsius.Parent()).To(Equal(double))
			Expect(celsius.Depth()).To(Equal(1))
			Expect(celsius.Fundamental()).To(Equal(double))
			Expect(celsius.Kind()).To(Equal(KindDouble))
			Expect(celsius.IsDerived()).To(BeTrue())
			Expect(celsius.IsFundamental()).To(BeFalse())
			Expect(celsius.IsA(double)).To(BeTrue())
			Expect(double.IsA(celsius)).To(BeFalse())
			Expect(celsius.IsA(e.FundamentalType(KindFloat))).To(BeFalse())
			Expect(double.Children()).To(ContainElement(celsius))
		})

		It("refuses duplicate and malformed names", func() {
			_, err := e.RegisterType("Celsius", e.FundamentalType(KindDouble))
			Expect(err).To(MatchError(ContainSubstring("already exists")))

			_, err = e.RegisterType("My Type", e.FundamentalType(KindDouble))
			Expect(err).To(MatchError(ContainSubstring("invalid type name")))

			_, err = e.RegisterType("Orphan", Type{})
			Expect(err).To(MatchError(ContainSubstring("invalid parent type")))
		})

		It("records where registration errors were raised", func() {
			_, err := e.RegisterType("Celsius", e.FundamentalType(KindDouble))
			Expect(fmt.Sprintf("%+v", err)).To(ContainSubstring("registerTypeNode"))

			_, err = e.RegisterEnum("Broken", reflect.TypeOf(int32(0)), EnumValue{Value: 1})
			Expect(fmt.Sprintf("%+v", err)).To(ContainSubstring("newEnumClass"))
		})

		It("maps registered Go types", func() {
			Expect(e.RegisterGoType(reflect.TypeOf(Celsius(0)), celsius)).To(Succeed())
			Expect(TypeFor[Celsius](e)).To(Equal(celsius))

			v, err := e.ValueOf(Celsius(21.5))
			Expect(err).To(BeNil())
			Expect(v.Type()).To(Equal(celsius))
			Expect(Get[float64](v)).To(Equal(21.5))

			natural, err := Get[any](v)
			Expect(err).To(BeNil())
			Expect(natural).To(Equal(Celsius(21.5)))
		})

		It("refuses to remap Go types of fundamentals", func() {
			err := e.RegisterGoType(reflect.TypeOf(float64(0)), celsius)
			Expect(err).To(MatchError(ContainSubstring("reserved for fundamental type gdouble")))
		})
	})

	It("requires the dedicated calls for enums and boxed types", func() {
		_, err := e.RegisterType("Broken", e.FundamentalType(KindEnum))
		Expect(err).To(MatchError(ContainSubstring("use RegisterEnum")))

		_, err = e.RegisterType("Broken", e.FundamentalType(KindBoxed))
		Expect(err).To(MatchError(ContainSubstring("use RegisterBoxedType")))
	})

	It("refuses enums backed by non integer Go types", func() {
		_, err := e.RegisterEnum("Broken", reflect.TypeOf(""), EnumValue{Value: 1, Name: "ONE"})
		Expect(err).To(MatchError(ContainSubstring("not an integer type")))
	})

	It("refuses enum values that clash", func() {
		_, err := e.RegisterEnum("Broken", nil,
			EnumValue{Value: 1, Name: "ONE"},
			EnumValue{Value: 2, Name: "ONE"},
		)
		Expect(err).To(MatchError(ContainSubstring("already registered")))
	})

	It("derives enum types from registered enums", func() {
		base, err := e.RegisterEnum("Base", nil, EnumValue{Value: 1, Name: "ONE"})
		Expect(err).To(BeNil())
		derived, err := e.RegisterType("Derived", base)
		Expect(err).To(BeNil())
		Expect(derived.EnumValues()).To(HaveLen(1))

		v := e.NewValue(derived)
		Expect(Set(v, "ONE")).To(Succeed())
		Expect(Get[int32](v)).To(Equal(int32(1)))
	})

	Context("object types", func() {
		var animal, dog Type

		BeforeEach(func() {
			var err error
			animal, err = e.RegisterObjectType("Animal", Type{},
				NewParamSpec("name", e.FundamentalType(KindString), ParamReadWrite, "unnamed"),
			)
			Expect(err).To(BeNil())
			dog, err = e.RegisterObjectType("Dog", animal,
				NewParamSpec("breed", e.FundamentalType(KindString), ParamReadWrite, nil),
				NewParamSpec("good_boy", e.FundamentalType(KindBool), ParamReadable, true),
			)
			Expect(err).To(BeNil())
		})

		It("derives from GObject by default", func() {
			Expect(animal.Parent()).To(Equal(e.FundamentalType(KindObject)))
			Expect(dog.IsA(animal)).To(BeTrue())
			Expect(dog.IsObject()).To(BeTrue())
		})

		It("lists the properties of the ancestors first", func() {
			var names []string
			for _, pspec := range dog.Properties() {
				names = append(names, pspec.Name)
			}
			Expect(names).To(Equal([]string{"name", "breed", "good-boy"}))
		})

		It("finds properties by canonical name", func() {
			pspec := dog.FindProperty("good_boy")
			Expect(pspec).ToNot(BeNil())
			Expect(pspec.Owner()).To(Equal(dog))
			Expect(dog.FindProperty("name").Owner()).To(Equal(animal))
			Expect(animal.FindProperty("breed")).To(BeNil())
			Expect(pspec.String()).To(Equal("Dog::good-boy (gboolean)"))
		})

		It("refuses broken property declarations", func() {
			_, err := e.RegisterObjectType("Cat", animal,
				NewParamSpec("lives", e.FundamentalType(KindInt), ParamReadWrite, "nine"),
			)
			Expect(err).To(MatchError(ContainSubstring("invalid default for property lives")))

			_, err = e.RegisterObjectType("Cat", animal,
				NewParamSpec("kind", e.FundamentalType(KindEnum), ParamReadWrite, nil),
			)
			Expect(err).To(MatchError(ContainSubstring("can not hold values")))
		})

		It("refuses non object parents", func() {
			_, err := e.RegisterObjectType("Weird", e.FundamentalType(KindInt))
			Expect(err).To(MatchError(ContainSubstring("is not an object type")))
		})

		It("maps Go types embedding Object to GObject", func() {
			Expect(TypeFor[*Person](e)).To(Equal(e.FundamentalType(KindObject)))
			Expect(TypeFor[*Object](e)).To(Equal(e.FundamentalType(KindObject)))
		})
	})

	It("keeps engines apart", func() {
		other, _ := createTestEngine()
		t, err := other.RegisterType("Celsius", other.FundamentalType(KindDouble))
		Expect(err).To(BeNil())

		err = e.RegisterGoType(reflect.TypeOf(Celsius(0)), t)
		Expect(err).To(MatchError(ContainSubstring("belongs to another engine")))
	})
})
